package httpx

import (
	"net"
	"testing"
)

type testListener struct {
	addr net.TCPAddr
}

func (tl testListener) Accept() (net.Conn, error) { return nil, nil }
func (tl testListener) Close() error              { return nil }
func (tl testListener) Addr() net.Addr            { return &tl.addr }

func newTCP(port int) Listener {
	return Listener{testListener{addr: net.TCPAddr{Port: port}}}
}

func TestBuildAddress(t *testing.T) {
	tests := []struct {
		addr string
		ls   Listener
		rez  string
	}{
		{addr: "", rez: "localhost"},
		{addr: ":", ls: newTCP(0), rez: "localhost"},
		{addr: "", ls: newTCP(393), rez: "localhost:393"},
		{addr: ":8000", ls: newTCP(8000), rez: "localhost:8000"},
		{addr: ":8000", ls: newTCP(8001), rez: "localhost:8001"},
		{addr: "host:8000", ls: newTCP(8000), rez: "host:8000"},
		{addr: ":443", ls: newTCP(443), rez: "localhost"},
		{addr: "[::]", rez: "[::]"},
	}
	for _, test := range tests {
		if address := buildAddress(test.addr, test.ls); address != test.rez {
			t.Errorf("expected %v, got %v", test.rez, address)
		}
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr Address
		host string
		port int
	}{
		{addr: "localhost:8000", host: "localhost", port: 8000},
		{addr: ":6601", host: "", port: 6601},
		{addr: "localhost", host: "localhost"},
		{addr: "host:abc", host: "host"},
	}
	for _, test := range tests {
		host, port := test.addr.SplitHostPort()
		if host != test.host || port != test.port {
			t.Errorf("%v: got %v %v", test.addr, host, port)
		}
	}
}

func TestExtractHost(t *testing.T) {
	for addr, want := range map[string]string{"a.com:8000": "a.com", "a.com": "a.com", "[::1]": "[::1]"} {
		if h := extractHost(addr); h != want {
			t.Errorf("%v: got %v, want %v", addr, h, want)
		}
	}
}
