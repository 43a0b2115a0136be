package sensor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestGeneratorRanges(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)))
	for i := 0; i < 500; i++ {
		r := g.Read()
		if r.Temperature < 20 || r.Temperature > 30 {
			t.Fatalf("temperature out of range: %v", r.Temperature)
		}
		if r.Humidity < 40 || r.Humidity > 60 {
			t.Fatalf("humidity out of range: %v", r.Humidity)
		}
		if r.Pressure < 1008 || r.Pressure > 1023 {
			t.Fatalf("pressure out of range: %v", r.Pressure)
		}
	}
}

func TestCRC16KnownVector(t *testing.T) {
	got := CRC16([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A})
	if got != 0xCDC5 {
		t.Fatalf("CRC16 = %04X, want CDC5", got)
	}
}

func TestEncodeDecodeReading(t *testing.T) {
	in := Reading{Temperature: 23.45, Humidity: 51.2, Pressure: 1013.2}
	raw := EncodeReading(0x11, in)
	if len(raw) != 11 {
		t.Fatalf("frame length = %d, want 11", len(raw))
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Address != 0x11 || f.Function != FuncReadHolding {
		t.Fatalf("header = %02X %02X", f.Address, f.Function)
	}
	out, err := DecodeReading(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if math.Abs(out.Temperature-in.Temperature) > 0.01 ||
		math.Abs(out.Humidity-in.Humidity) > 0.01 ||
		math.Abs(out.Pressure-in.Pressure) > 0.1 {
		t.Fatalf("decoded %+v from %+v", out, in)
	}
}

func TestParseFrameErrors(t *testing.T) {
	if _, err := ParseFrame([]byte{1, 3, 0}); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("short frame err = %v", err)
	}

	raw := EncodeReading(1, Reading{Temperature: 21, Humidity: 45, Pressure: 1010})
	raw[4] ^= 0xFF
	if _, err := ParseFrame(raw); !errors.Is(err, ErrBadCRC) {
		t.Fatalf("corrupt frame err = %v", err)
	}

	exc := []byte{0x01, 0x83, 0x02}
	exc = append(exc, byte(CRC16(exc)), byte(CRC16(exc)>>8))
	if _, err := ParseFrame(exc); !errors.Is(err, ErrException) {
		t.Fatalf("exception frame err = %v", err)
	}
}

func TestDecodeRejectsWrongFunction(t *testing.T) {
	if _, err := DecodeReading(Frame{Address: 1, Function: 0x06, Data: []byte{6, 0, 0, 0, 0, 0, 0}}); err == nil {
		t.Fatalf("expected error for function 0x06")
	}
}
