package directory

import (
	"sync"

	"github.com/chaosgomoku/solive/pkg/api"
)

// Recorder is a Handle that keeps every sent packet, handy in tests.
type Recorder struct {
	mu      sync.Mutex
	packets []api.Out
}

func (r *Recorder) Notify(t api.PT, payload any) {
	r.mu.Lock()
	r.packets = append(r.packets, api.Out{T: t, Payload: payload})
	r.mu.Unlock()
}

// Packets returns sent packets of the type, all of them if t is 0.
func (r *Recorder) Packets(t api.PT) []api.Out {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []api.Out
	for _, p := range r.packets {
		if t == 0 || p.T == t {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of sent packets of the type.
func (r *Recorder) Count(t api.PT) int { return len(r.Packets(t)) }

// Last returns the last sent packet of the type.
func (r *Recorder) Last(t api.PT) (api.Out, bool) {
	pp := r.Packets(t)
	if len(pp) == 0 {
		return api.Out{}, false
	}
	return pp[len(pp)-1], true
}

func (r *Recorder) Reset() { r.mu.Lock(); r.packets = nil; r.mu.Unlock() }
