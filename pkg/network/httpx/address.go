package httpx

import (
	"net"
	"strconv"
	"strings"
)

type Address string

// SplitHostPort returns the host and the numeric port of the address,
// the port is 0 when missing or malformed.
func (a Address) SplitHostPort() (string, int) {
	host, port, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a), 0
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return host, 0
	}
	return host, p
}

// buildAddress joins the host of the address with the port
// of the listener, default web ports are omitted.
//
// As example, address host.com:8080 and listener 123.123.123.123:8888 will be
// transformed to host.com:8888.
func buildAddress(address string, l Listener) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if host == "" {
		host = "localhost"
	}
	if l.Listener == nil {
		return host
	}
	port := l.GetPort()
	if port > 0 && port != 80 && port != 443 {
		host += ":" + strconv.Itoa(port)
	}
	return host
}

func extractHost(address string) string {
	if i := strings.LastIndex(address, ":"); i > 0 && !strings.HasSuffix(address, "]") {
		return address[:i]
	}
	return address
}
