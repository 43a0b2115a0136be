package demo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"triad-console/internal/events"
	"triad-console/internal/sensor"
)

const sensorDevice = 0x01

// bme280Driver decodes a read-holding-registers response on the interpreter.
// FRAME is prepended by driverSource.
const bme280Driver = `
def driver(frame):
    def crc16(data):
        crc = 0xFFFF
        for b in data:
            crc = crc ^ b
            for _ in range(8):
                if crc & 1:
                    crc = (crc >> 1) ^ 0xA001
                else:
                    crc = crc >> 1
        return crc

    def word(i):
        return (frame[3 + 2 * i] << 8) | frame[4 + 2 * i]

    if crc16(frame[:-2]) != (frame[-2] | (frame[-1] << 8)):
        fail("crc mismatch")
    t = word(0)
    if t >= 32768:
        t -= 65536
    return "%s|%s|%s" % (t / 100.0, word(1) / 100.0, word(2) / 10.0)

result = driver(FRAME)
`

func driverSource(frame []byte) string {
	var sb strings.Builder
	sb.WriteString("FRAME = [")
	for i, b := range frame {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	sb.WriteString("]\n")
	sb.WriteString(bme280Driver)
	return sb.String()
}

func parseDriverResult(out string) (sensor.Reading, error) {
	parts := strings.Split(out, "|")
	if len(parts) != 3 {
		return sensor.Reading{}, fmt.Errorf("driver returned %q", out)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return sensor.Reading{}, fmt.Errorf("driver value %q: %w", p, err)
		}
		vals[i] = v
	}
	return sensor.Reading{Temperature: vals[0], Humidity: vals[1], Pressure: vals[2]}, nil
}

// SensorCheck reads one BME280 sample and decodes it on both runtimes. It
// blocks until both sides have finished.
func (e *Engine) SensorCheck(ctx context.Context) error {
	var b batch
	e.mu.Lock()
	if !e.metrics.RuntimeReady {
		e.mu.Unlock()
		return ErrRuntimeNotReady
	}
	if e.running || e.runningAll || e.sensorRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	e.sensorRunning = true
	e.runID = uuid.NewString()
	e.interpLocked(&b, events.LevelInfo, "$ starlark sensor_driver.star")
	e.interpLocked(&b, events.LevelInfo, "[INIT] Loading starlark runtime...")
	e.sandboxLocked(&b, events.LevelInfo, "$ wazero run sensor_driver.wasm")
	e.sandboxLocked(&b, events.LevelInfo, "[INIT] Loading wazero runtime...")
	e.mu.Unlock()
	e.emit(&b)

	reading := e.sensor.Read()
	frame := sensor.EncodeReading(sensorDevice, reading)

	sbReading, sbTime, sbErr := e.sandboxSensor(ctx, frame)
	inReading, inTime, inErr := e.interpretedSensor(ctx, frame)

	b = batch{state: true}
	e.mu.Lock()
	if sbErr != nil {
		e.sandboxLocked(&b, events.LevelError, "[ERR] Sensor read failed: %v", sbErr)
	} else {
		e.sandboxLocked(&b, events.LevelSuccess, "[OK] Module instantiated in %.3fms", ms(sbTime))
		e.sandboxLocked(&b, events.LevelSuccess, "[OK] BME280 driver initialized")
		e.logReadingLocked(&b, events.SideSandbox, sbReading)
		e.metrics.SandboxSensorMS = ms(sbTime)
	}
	if inErr != nil {
		e.interpLocked(&b, events.LevelError, "[ERR] Driver failed: %s", truncate(inErr.Error(), uncaughtLimit))
		e.metrics.InterpretedSensorMS = -1
	} else {
		e.interpLocked(&b, events.LevelSuccess, "[OK] Driver executed in %.2fms", ms(inTime))
		e.logReadingLocked(&b, events.SideInterpreted, inReading)
		e.metrics.InterpretedSensorMS = ms(inTime)
	}
	e.counters.SandboxProcessed++
	e.counters.InterpretedProcessed++
	e.metrics.SensorRan = true
	e.sensorRunning = false
	e.mu.Unlock()
	e.emit(&b)

	e.log.Info("sensor check finished", "temperature", reading.Temperature, "sandbox_err", sbErr, "interpreted_err", inErr)
	return nil
}

func (e *Engine) logReadingLocked(b *batch, side string, r sensor.Reading) {
	e.logLocked(b, side, events.LevelInfo, fmt.Sprintf("Temperature: %.1f°C", r.Temperature))
	e.logLocked(b, side, events.LevelInfo, fmt.Sprintf("Humidity: %.1f%%", r.Humidity))
	e.logLocked(b, side, events.LevelInfo, fmt.Sprintf("Pressure: %.2f hPa", r.Pressure))
}

// sandboxSensor times instantiation plus the kernel call and decodes the frame.
func (e *Engine) sandboxSensor(ctx context.Context, frame []byte) (sensor.Reading, time.Duration, error) {
	if e.sandbox == nil {
		return sensor.Reading{}, 0, errors.New("no sandbox")
	}
	start := time.Now()
	if k, ok := e.sandbox.(SensorKernel); ok {
		if _, err := k.Invoke(ctx, int32(frame[3])<<8|int32(frame[4]), 0); err != nil {
			return sensor.Reading{}, 0, err
		}
	} else if _, err := e.sandbox.Measure(ctx); err != nil {
		return sensor.Reading{}, 0, err
	}
	f, err := sensor.ParseFrame(frame)
	if err != nil {
		return sensor.Reading{}, 0, err
	}
	r, err := sensor.DecodeReading(f)
	if err != nil {
		return sensor.Reading{}, 0, err
	}
	return r, time.Since(start), nil
}

// interpretedSensor runs the driver script on the interpreter.
func (e *Engine) interpretedSensor(ctx context.Context, frame []byte) (sensor.Reading, time.Duration, error) {
	if e.runner == nil {
		return sensor.Reading{}, 0, errors.New("no interpreter runtime")
	}
	start := time.Now()
	out, err := e.runner.Run(ctx, "sensor_driver.star", driverSource(frame))
	if err != nil {
		return sensor.Reading{}, 0, err
	}
	r, err := parseDriverResult(out)
	if err != nil {
		return sensor.Reading{}, 0, err
	}
	return r, time.Since(start), nil
}
