package transport

import "fmt"

// Backends lists the names Open accepts.
var Backends = []string{"serial", "uart", "file"}

// Open returns the dialer for backend. port is a device name, a periph UART
// name or a file path depending on the backend.
func Open(backend, port string, baud int) (Dialer, error) {
	switch backend {
	case "", "serial":
		if port == "" {
			return nil, fmt.Errorf("serial backend needs a port")
		}
		return Serial(port, baud), nil
	case "uart":
		return UART(port, baud), nil
	case "file":
		if port == "" {
			return nil, fmt.Errorf("file backend needs a path")
		}
		return File(port), nil
	}
	return nil, fmt.Errorf("unknown backend %q (want one of %v)", backend, Backends)
}
