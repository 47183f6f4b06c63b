package controller

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=controller

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a CNC
// controller.
//
// A Transport is assumed to be already connected and ready for use.
// Typical implementations include serial ports, TCP bridges to a
// controller's telnet console, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a controller.
//
// Dialer abstracts how the connection is created and is used during
// Controller construction only.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation of ctx.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the baud rate Smoothieboards use on their UART.
const DefaultBaudRate = 115200

// SerialDialer opens a controller over a serial port.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyACM0" or "COM3".
	PortName string
	// Mode is the serial line configuration. Nil means DefaultBaudRate 8N1.
	Mode *serial.Mode
}

var (
	errNoPortName = errors.New("controller: serial port name is required")
	errNilContext = errors.New("controller: context is nil")
)

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errNilContext
	}
	if d.PortName == "" {
		return nil, errNoPortName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: DefaultBaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("controller: open %s: %w", d.PortName, err)
	}
	return port, nil
}
