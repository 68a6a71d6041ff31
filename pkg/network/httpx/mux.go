package httpx

import "net/http"

type (
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// Mux is a chainable ServeMux that mounts every pattern under a prefix.
type Mux struct {
	*http.ServeMux
	prefix string
}

func NewServeMux(prefix string) *Mux { return &Mux{ServeMux: http.NewServeMux(), prefix: prefix} }

func (m *Mux) Handle(pattern string, h Handler) *Mux {
	m.ServeMux.Handle(m.prefix+pattern, h)
	return m
}

func (m *Mux) HandleFunc(pattern string, fn func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(m.prefix+pattern, fn)
	return m
}
