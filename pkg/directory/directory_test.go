package directory

import (
	"sync"
	"testing"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/logger"
)

func TestUnregisterReleasesFirst(t *testing.T) {
	d := New(logger.NewNop())
	d.Register("a", &Recorder{})
	d.SetRoom("a", "r1")

	var order []string
	d.AddReleaser(func(id string) {
		s, ok := d.Session(id)
		if !ok || s.RoomId != "r1" {
			t.Errorf("session should be alive during release, got %+v %v", s, ok)
		}
		order = append(order, "live")
	})
	d.AddReleaser(func(string) { order = append(order, "meeting") })

	var counts []int
	d.OnHeadCount(func(n int) { counts = append(counts, n) })

	d.Unregister("a")
	d.Unregister("a")

	if len(order) != 2 || order[0] != "live" || order[1] != "meeting" {
		t.Errorf("wrong release order %v", order)
	}
	if _, ok := d.Lookup("a"); ok {
		t.Errorf("connection should be gone")
	}
	if len(counts) != 1 || counts[0] != 0 {
		t.Errorf("expected one head-count change to 0, got %v", counts)
	}
}

func TestConcurrentUnregister(t *testing.T) {
	d := New(logger.NewNop())
	d.Register("a", &Recorder{})
	var mu sync.Mutex
	calls := 0
	d.AddReleaser(func(string) { mu.Lock(); calls++; mu.Unlock() })

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() { defer wg.Done(); d.Unregister("a") }()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("releaser should run once, got %v", calls)
	}
}

func TestBroadcast(t *testing.T) {
	d := New(logger.NewNop())
	a, b, c := &Recorder{}, &Recorder{}, &Recorder{}
	d.Register("a", a)
	d.Register("b", b)
	d.Register("c", c)
	d.SetRoom("a", "r")
	d.SetRoom("b", "r")

	tests := []struct {
		name string
		send func()
		want [3]int
	}{
		{"all", func() { d.Broadcast(api.Message, "hi") }, [3]int{1, 1, 1}},
		{"all but a", func() { d.Broadcast(api.Message, "hi", "a") }, [3]int{0, 1, 1}},
		{"room", func() { d.BroadcastRoom("r", api.Message, "hi") }, [3]int{1, 1, 0}},
		{"room but b", func() { d.BroadcastRoom("r", api.Message, "hi", "b") }, [3]int{1, 0, 0}},
		{"no room", func() { d.BroadcastRoom("", api.Message, "hi") }, [3]int{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Reset()
			b.Reset()
			c.Reset()
			tt.send()
			got := [3]int{a.Count(api.Message), b.Count(api.Message), c.Count(api.Message)}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if d.Notify("x", api.Message, "hi") {
		t.Errorf("unknown connection notified")
	}
	if n := len(d.Members("r")); n != 2 {
		t.Errorf("expected 2 members, got %v", n)
	}
}

func TestUpdate(t *testing.T) {
	d := New(logger.NewNop())
	if d.Update("a", func(s *Session) {}) {
		t.Errorf("update of unknown connection")
	}
	d.Register("a", &Recorder{})
	d.Update("a", func(s *Session) { s.Nickname = "bob"; s.Role = RoleAnchor })
	s, _ := d.Session("a")
	if s.Nickname != "bob" || s.Role != RoleAnchor || s.Id != "a" {
		t.Errorf("unexpected session %+v", s)
	}
	if d.Count() != 1 {
		t.Errorf("expected 1 connection")
	}
}

func TestHeadCount(t *testing.T) {
	d := New(logger.NewNop())
	var first, second []int
	d.OnHeadCount(func(n int) { first = append(first, n) })
	d.OnHeadCount(func(n int) { second = append(second, n) })

	d.Register("a", &Recorder{})
	d.Register("b", &Recorder{})
	d.Unregister("a")

	want := []int{1, 2, 1}
	for _, got := range [][]int{first, second} {
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expected %v, got %v", want, got)
			}
		}
	}
}
