package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/chaosgomoku/solive/pkg/logger"
)

func TestServer(t *testing.T) {
	mux := NewServeMux("/api").HandleFunc("/ping", func(w ResponseWriter, _ *Request) {
		_, _ = w.Write([]byte("pong"))
	})
	s, err := NewServer("127.0.0.1:0", mux, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	s.Run()
	defer func() { _ = s.Shutdown(context.Background()) }()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/ping", s.Port()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("got %q", body)
	}
	if s.Protocol() != "http" || s.Host() != "127.0.0.1" {
		t.Errorf("wrong server %v", s)
	}
}
