// Package coordinator accepts signaling connections and
// dispatches their packets to the room managers.
package coordinator

import (
	"context"
	"fmt"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/monitoring"
	"github.com/chaosgomoku/solive/pkg/network/httpx"
)

type Coordinator struct {
	hub    *Hub
	server *httpx.Server
	log    *logger.Logger
}

func New(conf config.Config, e engine.Engine, store Store, metrics *monitoring.Metrics, log *logger.Logger) (*Coordinator, error) {
	hub := NewHub(conf, e, store, metrics, log)
	server, err := NewHTTPServer(conf.Server, log, hub.routes)
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("http server: %w", err)
	}
	return &Coordinator{hub: hub, server: server, log: log}, nil
}

func (c *Coordinator) Hub() *Hub { return c.hub }

// Addr is the address the signaling server listens on.
func (c *Coordinator) Addr() string { return c.server.Address() }

func (c *Coordinator) Run() { c.server.Run() }

// Shutdown disconnects every client and stops the server.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.hub.Close()
	return c.server.Shutdown(ctx)
}

func (c *Coordinator) String() string { return "coordinator::" + c.server.String() }
