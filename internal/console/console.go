// Package console attaches to the WCH-LinkE's CDC UART bridge, which
// forwards the target's serial output alongside the debug channel.
package console

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the probe bridge's power-on configuration.
const DefaultBaudRate = 115200

// ListPorts returns the available serial ports.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Monitor opens the bridge port and copies everything the target prints
// to w until the port errors out or the process is interrupted.
func Monitor(portName string, baudRate int, w io.Writer) error {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", portName, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(500 * time.Millisecond); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	buf := make([]byte, 1024)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return fmt.Errorf("port read: %w", err)
		}
	}
}
