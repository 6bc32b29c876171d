package transport

import (
	"context"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaud is the printer's factory link speed.
const DefaultBaud = 115200

// Serial dials a host serial device such as /dev/ttyUSB0 or COM3, 8N1.
func Serial(name string, baud int) Dialer {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return func(ctx context.Context) (Port, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := serial.Open(name, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// PortInfo describes one serial device found on the host.
type PortInfo struct {
	Name    string `json:"name"`
	USB     bool   `json:"usb"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Product string `json:"product,omitempty"`
}

// ListPorts enumerates serial devices, with USB details where the OS
// provides them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, lerr := serial.GetPortsList()
		if lerr != nil {
			return nil, err
		}
		out := make([]PortInfo, len(names))
		for i, n := range names {
			out[i] = PortInfo{Name: n}
		}
		return out, nil
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return out, nil
}
