package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FuncReadHolding is the Modbus "read holding registers" function code.
const FuncReadHolding = 0x03

// Frame errors returned by ParseFrame.
var (
	ErrFrameTooShort = errors.New("modbus: frame too short")
	ErrBadCRC        = errors.New("modbus: crc mismatch")
	ErrException     = errors.New("modbus: exception response")
)

// Frame is a decoded Modbus RTU frame without its CRC.
type Frame struct {
	Address  byte
	Function byte
	Data     []byte
}

// CRC16 computes the Modbus CRC (poly 0xA001, init 0xFFFF).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// EncodeReading builds a function 0x03 response carrying the reading in three
// registers: temperature x100 (signed), humidity x100, pressure x10.
func EncodeReading(device byte, r Reading) []byte {
	regs := make([]byte, 6)
	binary.BigEndian.PutUint16(regs[0:], uint16(int16(math.Round(r.Temperature*100))))
	binary.BigEndian.PutUint16(regs[2:], uint16(math.Round(r.Humidity*100)))
	binary.BigEndian.PutUint16(regs[4:], uint16(math.Round(r.Pressure*10)))

	frame := []byte{device, FuncReadHolding, byte(len(regs))}
	frame = append(frame, regs...)
	return binary.LittleEndian.AppendUint16(frame, CRC16(frame))
}

// ParseFrame validates length and CRC and splits out the header.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < 4 {
		return Frame{}, ErrFrameTooShort
	}
	body := raw[:len(raw)-2]
	want := binary.LittleEndian.Uint16(raw[len(raw)-2:])
	if got := CRC16(body); got != want {
		return Frame{}, fmt.Errorf("%w: got %04X want %04X", ErrBadCRC, got, want)
	}
	f := Frame{Address: body[0], Function: body[1], Data: body[2:]}
	if f.Function >= 0x80 {
		code := byte(0)
		if len(f.Data) > 0 {
			code = f.Data[0]
		}
		return f, fmt.Errorf("%w: function %02X code %02X", ErrException, f.Function&0x7F, code)
	}
	return f, nil
}

// DecodeReading extracts a reading from a read-holding-registers response.
func DecodeReading(f Frame) (Reading, error) {
	if f.Function != FuncReadHolding {
		return Reading{}, fmt.Errorf("modbus: unexpected function %02X", f.Function)
	}
	if len(f.Data) < 7 || f.Data[0] < 6 {
		return Reading{}, ErrFrameTooShort
	}
	regs := f.Data[1:]
	return Reading{
		Temperature: float64(int16(binary.BigEndian.Uint16(regs[0:]))) / 100,
		Humidity:    float64(binary.BigEndian.Uint16(regs[2:])) / 100,
		Pressure:    float64(binary.BigEndian.Uint16(regs[4:])) / 10,
	}, nil
}
