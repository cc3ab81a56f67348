package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Target is a resolved endpoint. It is immutable once returned by
// ResolveTarget and safe to share across workers.
type Target struct {
	Host     string
	Port     int
	Protocol Protocol
	// Addr is the resolved "ip:port" that every write dials.
	Addr string
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s", t.Protocol, net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
}

// ResolveTarget turns a user supplied "host:port" into a Target. Name
// resolution happens once here so that workers never perform lookups.
func ResolveTarget(ctx context.Context, hostport string, protocol Protocol) (Target, error) {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return Target{}, fmt.Errorf("host is required")
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Target{}, fmt.Errorf("invalid host %q: %w", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port %q in host %q", portStr, hostport)
	}
	if host == "" {
		host = "localhost"
	}

	ip, err := lookupIP(ctx, host)
	if err != nil {
		return Target{}, fmt.Errorf("resolve %q: %w", host, err)
	}

	return Target{
		Host:     host,
		Port:     port,
		Protocol: protocol,
		Addr:     net.JoinHostPort(ip.String(), strconv.Itoa(port)),
	}, nil
}

func lookupIP(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses found")
	}
	// Prefer IPv4 to match the loopback address most servers bind.
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return addrs[0].IP, nil
}
