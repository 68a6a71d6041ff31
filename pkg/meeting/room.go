package meeting

import (
	"sort"
	"sync"

	"github.com/chaosgomoku/solive/pkg/engine"
	"github.com/chaosgomoku/solive/pkg/logger"
)

// Room is a meeting room with its media resources keyed by connection id.
type Room struct {
	Id     string
	router engine.Router

	mu                 sync.Mutex
	members            map[string]struct{}
	producerTransports map[string]engine.Transport
	consumerTransports map[string]engine.Transport
	producers          map[string]map[string]engine.Producer
	// consumers are keyed by connection and then by producer id
	consumers map[string]map[string]engine.Consumer
	closed    bool
}

func newRoom(id string, router engine.Router) *Room {
	return &Room{
		Id:                 id,
		router:             router,
		members:            map[string]struct{}{},
		producerTransports: map[string]engine.Transport{},
		consumerTransports: map[string]engine.Transport{},
		producers:          map[string]map[string]engine.Producer{},
		consumers:          map[string]map[string]engine.Consumer{},
	}
}

func (r *Room) has(conn string) bool { _, ok := r.members[conn]; return ok }

func (r *Room) transports(dir engine.Direction) map[string]engine.Transport {
	if dir == engine.Producing {
		return r.producerTransports
	}
	return r.consumerTransports
}

// Members returns sorted member ids.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedMembers()
}

func (r *Room) sortedMembers() []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ProducerIds returns ids of the member producers.
func (r *Room) ProducerIds(conn string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.producers[conn])
}

// ConsumedProducerIds returns ids of producers the member consumes.
func (r *Room) ConsumedProducerIds(conn string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.consumers[conn])
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// closeProducers closes the member producers together with every consumer
// of them in the room and returns the closed ids.
func (r *Room) closeProducers(conn string, log *logger.Logger) []string {
	ids := sortedKeys(r.producers[conn])
	for _, id := range ids {
		if err := r.producers[conn][id].Close(); err != nil {
			log.Debug().Err(err).Str("producer", id).Msg("producer close")
		}
	}
	delete(r.producers, conn)

	for peer, consumers := range r.consumers {
		for _, id := range ids {
			c, ok := consumers[id]
			if !ok {
				continue
			}
			if err := c.Close(); err != nil {
				log.Debug().Err(err).Str(logger.ClientField, peer).Str("consumer", c.Id()).Msg("consumer close")
			}
			delete(consumers, id)
		}
	}
	return ids
}

func (r *Room) closeConsumers(conn string, log *logger.Logger) {
	for _, c := range r.consumers[conn] {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Str("consumer", c.Id()).Msg("consumer close")
		}
	}
	delete(r.consumers, conn)
}

func (r *Room) closeTransport(conn string, dir engine.Direction, log *logger.Logger) {
	m := r.transports(dir)
	if t, ok := m[conn]; ok {
		if err := t.Close(); err != nil {
			log.Debug().Err(err).Str("transport", t.Id()).Msg("transport close")
		}
		delete(m, conn)
	}
}

// release frees everything the member holds: producers, consumers of
// those producers, own consumers and then transports.
func (r *Room) release(conn string, log *logger.Logger) []string {
	closed := r.closeProducers(conn, log)
	r.closeConsumers(conn, log)
	r.closeTransport(conn, engine.Producing, log)
	r.closeTransport(conn, engine.Consuming, log)
	return closed
}
