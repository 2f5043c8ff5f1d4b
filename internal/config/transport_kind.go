package config

import "fmt"

// TransportKind selects how commands and events travel between the
// controller and its worker. It is fixed when the fork channel is created.
type TransportKind int

const (
	// TransportPipe uses the worker's standard input and output.
	TransportPipe TransportKind = iota
	// TransportTCP uses a loopback TCP connection the worker dials back.
	TransportTCP
)

// String returns the canonical transport name.
func (k TransportKind) String() string {
	switch k {
	case TransportPipe:
		return "pipe"
	case TransportTCP:
		return "tcp"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseTransport maps a transport name to its kind.
//
// Accepted aliases:
//   - "stdio" -> "pipe"
//   - "socket", "network" -> "tcp"
func ParseTransport(name string) (TransportKind, error) {
	switch name {
	case "pipe", "stdio":
		return TransportPipe, nil
	case "tcp", "socket", "network":
		return TransportTCP, nil
	default:
		return 0, fmt.Errorf("unknown transport %q", name)
	}
}
