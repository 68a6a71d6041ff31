package com

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/goccy/go-json"
)

func TestCallReply(t *testing.T) {
	log := logger.NewNop()
	co := NewConnector()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := co.NewServer(w, r, log)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c.OnPacket(func(in api.In) {
			rq, err := api.Unwrap[api.RoomRequest](in.Payload)
			if err != nil {
				c.Notify(api.Error, api.ErrorResponse{Code: api.ErrCodeMalformed})
				return
			}
			c.Reply(in, api.RoomResponse{RoomId: rq.RoomId + "!"})
		})
		c.Listen()
		<-c.Done()
	}))
	defer server.Close()

	addr, _ := url.Parse("ws" + strings.TrimPrefix(server.URL, "http"))
	client, err := co.NewClient(*addr, log)
	if err != nil {
		t.Fatal(err)
	}
	notices := make(chan api.In, 1)
	client.OnPacket(func(in api.In) { notices <- in })
	client.Listen()
	defer client.Close()

	data, err := client.Call(api.EnterRoom, api.RoomRequest{RoomId: "42"})
	if err != nil {
		t.Fatal(err)
	}
	var resp api.RoomResponse
	if err = json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RoomId != "42!" {
		t.Errorf("unexpected reply %+v", resp)
	}

	client.Notify(api.EnterRoom, api.RoomRequest{})
	select {
	case in := <-notices:
		if in.T != api.Error {
			t.Errorf("expected error packet, got %v", in.T)
		}
	case <-time.After(3 * time.Second):
		t.Errorf("no error packet")
	}
}

func TestUid(t *testing.T) {
	id := NewUid()
	parsed, err := ParseUid(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Errorf("%v != %v", parsed, id)
	}
	if len(id.Short()) != 7 {
		t.Errorf("bad short id %v", id.Short())
	}
	if _, err = ParseUid("nope"); err == nil {
		t.Errorf("expected parse error")
	}
}
