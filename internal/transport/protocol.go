package transport

import (
	"fmt"
	"strings"
)

// Protocol selects the transport semantics of a write.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol accepts "tcp" or "udp" in any letter case. An empty value
// selects TCP.
func ParseProtocol(value string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ProtocolTCP):
		return ProtocolTCP, nil
	case string(ProtocolUDP):
		return ProtocolUDP, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q: use \"tcp\" or \"udp\"", value)
	}
}

func (p Protocol) String() string {
	return string(p)
}
