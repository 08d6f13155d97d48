// Package address validates WCF endpoint strings and derives the paired
// notification endpoint.
//
// The automation service listens on two adjacent ports: the RPC socket on
// port N and the message push socket on port N+1.
//
//	tcp://127.0.0.1:10086  → RPC
//	tcp://127.0.0.1:10087  → push
package address

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/eatmoreapple/env"
)

const (
	// Scheme is the only transport scheme the service accepts.
	Scheme = "tcp"
	// DefaultAddress is used when no address is configured.
	DefaultAddress = "tcp://127.0.0.1:10086"
	// EnvAddress names the environment variable read by FromEnv.
	EnvAddress = "TCP_ADDR"
)

// Endpoint is a validated (scheme, host, port) triple.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// ConfigError reports which part of an address string is invalid.
type ConfigError struct {
	Address string // The raw input
	Part    string // "address", "scheme", "host" or "port"
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid address %q: %s: %s", e.Address, e.Part, e.Reason)
}

// Default returns the endpoint for DefaultAddress.
func Default() Endpoint {
	return Endpoint{Scheme: Scheme, Host: "127.0.0.1", Port: 10086}
}

// Normalize parses addr into an Endpoint. A blank addr yields Default().
// Any other malformed input is a *ConfigError; it never falls back to the default.
func Normalize(addr string) (Endpoint, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return Default(), nil
	}
	return Parse(trimmed)
}

// Parse parses a non-empty "scheme://host:port" string.
func Parse(addr string) (Endpoint, error) {
	scheme, hostPort, ok := strings.Cut(addr, "://")
	if !ok {
		return Endpoint{}, &ConfigError{Address: addr, Part: "address", Reason: "expected scheme://host:port"}
	}
	if scheme != Scheme {
		return Endpoint{}, &ConfigError{Address: addr, Part: "scheme", Reason: fmt.Sprintf("unsupported scheme %q, only %q is supported", scheme, Scheme)}
	}

	// Split on the last colon so unbracketed IPv6 hosts still work.
	i := strings.LastIndexByte(hostPort, ':')
	if i <= 0 || i == len(hostPort)-1 {
		return Endpoint{}, &ConfigError{Address: addr, Part: "address", Reason: "expected host:port"}
	}
	host, portStr := hostPort[:i], hostPort[i+1:]

	bracketed := strings.HasPrefix(host, "[")
	if bracketed != strings.HasSuffix(host, "]") {
		return Endpoint{}, &ConfigError{Address: addr, Part: "host", Reason: fmt.Sprintf("unbalanced brackets in %q", host)}
	}
	if bracketed {
		host = host[1 : len(host)-1]
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Endpoint{}, &ConfigError{Address: addr, Part: "host", Reason: fmt.Sprintf("%q is not an IP literal", host)}
	}
	if bracketed && !ip.Is6() {
		return Endpoint{}, &ConfigError{Address: addr, Part: "host", Reason: fmt.Sprintf("brackets around non-IPv6 host %q", host)}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, &ConfigError{Address: addr, Part: "port", Reason: fmt.Sprintf("%q is not a number", portStr)}
	}
	if port <= 0 || port >= 65536 {
		return Endpoint{}, &ConfigError{Address: addr, Part: "port", Reason: fmt.Sprintf("%d out of range (0, 65536)", port)}
	}

	return Endpoint{Scheme: scheme, Host: ip.String(), Port: port}, nil
}

// FromEnv normalizes the value of EnvAddress. An unset or blank variable
// yields Default().
func FromEnv() (Endpoint, error) {
	return Normalize(env.Name(EnvAddress).StringOrElse(DefaultAddress))
}

// Notification returns the push endpoint paired with e (port + 1).
// The result is not range-checked; dialing an invalid port fails there.
func (e Endpoint) Notification() Endpoint {
	e.Port++
	return e
}

// HostPort returns the "host:port" form accepted by net.Dial.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String renders e as "tcp://host:port".
func (e Endpoint) String() string {
	return e.Scheme + "://" + e.HostPort()
}
