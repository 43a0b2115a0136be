package demo

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"triad-console/internal/events"
)

const (
	defaultGreptimePort = 4001
	greptimeTimeout     = 5 * time.Second
)

// greptimeClient is the subset of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes log and state rows to GreptimeDB via the ingester
// client. Tables are created on first write.
type GreptimeDBWriter struct {
	client     greptimeClient
	eventTable string
	stateTable string
	log        *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint (host or host:port).
func NewGreptimeDBWriter(endpoint, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{
		client:     client,
		eventTable: events.EventTableName,
		stateTable: events.StateTableName,
		log:        log,
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint %q: bad port", endpoint)
	}
	return host, port, nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}

// WriteEvent inserts a single log row.
func (w *GreptimeDBWriter) WriteEvent(row events.LogRow) error {
	return w.WriteEvents([]events.LogRow{row})
}

// WriteEvents inserts multiple log rows.
func (w *GreptimeDBWriter) WriteEvents(rows []events.LogRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tag("session_id"), tag("run_id"), tag("side"),
		field("seq", types.INT64), field("level", types.STRING), field("message", types.STRING),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.SessionID, r.RunID, r.Side, int64(r.Seq), r.Level, r.Message, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, w.eventTable, len(rows))
}

// WriteState inserts a state row.
func (w *GreptimeDBWriter) WriteState(r events.StateRow) error {
	tbl, err := table.New(w.stateTable)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tag("session_id"),
		field("interpreted_processed", types.INT64),
		field("interpreted_crashed", types.INT64),
		field("interpreted_downtime_ms", types.INT64),
		field("sandbox_processed", types.INT64),
		field("sandbox_rejected", types.INT64),
		field("sandbox_downtime_ms", types.INT64),
		field("leader", types.INT64),
		field("faulty", types.INT64),
		field("active_worker", types.INT64),
		field("instances", types.STRING),
		field("workers", types.STRING),
		field("restarting", types.BOOLEAN),
		field("running", types.BOOLEAN),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(r.SessionID,
		r.InterpretedProcessed, r.InterpretedCrashed, r.InterpretedDowntime,
		r.SandboxProcessed, r.SandboxRejected, r.SandboxDowntime,
		int64(r.Leader), int64(r.Faulty), int64(r.ActiveWorker),
		r.Instances, r.Workers, r.Restarting, r.Running, r.Timestamp,
	); err != nil {
		return err
	}
	return w.write(tbl, w.stateTable, 1)
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), greptimeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.logger().Error("greptime write failed", "table", name, "err", err)
		return err
	}
	w.logger().Debug("greptime rows written", "table", name, "rows", n)
	return nil
}

type column struct {
	name string
	tag  bool
	typ  types.ColumnType
}

func tag(name string) column { return column{name: name, tag: true, typ: types.STRING} }

func field(name string, typ types.ColumnType) column { return column{name: name, typ: typ} }

// addColumns adds cols in order followed by the ts time index.
func addColumns(tbl *table.Table, cols ...column) error {
	for _, c := range cols {
		var err error
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return err
		}
	}
	return tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
}
