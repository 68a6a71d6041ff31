package coordinator

import (
	"net/http"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/network/httpx"
	"github.com/goccy/go-json"
)

func NewHTTPServer(conf config.Server, log *logger.Logger, fnMux func(*httpx.Mux) *httpx.Mux) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.GetAddr(),
		fnMux(httpx.NewServeMux("")),
		httpx.WithServerConfig(conf),
		httpx.WithLogger(log),
	)
}

// routes adds the endpoints of the hub.
func (h *Hub) routes(mux *httpx.Mux) *httpx.Mux {
	return mux.
		HandleFunc("/", index).
		HandleFunc("/ws", h.handleWebsocket).
		HandleFunc("/stats", h.stats)
}

func index(w httpx.ResponseWriter, r *httpx.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte("solive signaling server\n"))
}

func (h *Hub) stats(w httpx.ResponseWriter, _ *httpx.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Stats()); err != nil {
		h.log.Error().Err(err).Msg("stats")
	}
}
