package com

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaosgomoku/solive/pkg/api"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/network/websocket"
	"github.com/goccy/go-json"
)

type (
	Connector struct {
		wu *websocket.Upgrader
	}
	// Client is one end of a signaling socket, both server and client sides.
	Client struct {
		id       Uid
		conn     *websocket.WS
		queue    map[string]*call
		seq      atomic.Uint64
		onPacket func(packet api.In)
		log      *logger.Logger
		mu       sync.Mutex
	}
	call struct {
		done     chan struct{}
		err      error
		Response api.In
	}
	Option = func(c *Connector)
)

var (
	ErrRemote = errors.New("remote error")

	errConnClosed = errors.New("connection closed")
	errTimeout    = errors.New("timeout")
)

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }

const callTimeout = 5 * time.Second

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

// NewServer upgrades an HTTP request into a server-side client with a new id.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	id := NewUid()
	log = log.Extend(log.With().Str(logger.ClientField, id.Short()))
	conn, err := websocket.NewServerWithConn(ws, log)
	return connect(id, conn, err, log)
}

func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*Client, error) {
	conn, err := websocket.NewClient(address, log)
	return connect(NilUid, conn, err, log)
}

func connect(id Uid, conn *websocket.WS, err error, log *logger.Logger) (*Client, error) {
	if err != nil {
		return nil, err
	}
	client := &Client{id: id, conn: conn, queue: make(map[string]*call, 1), log: log, onPacket: func(api.In) {}}
	client.conn.OnMessage = client.handleMessage
	return client, nil
}

func (c *Client) Id() Uid        { return c.id }
func (c *Client) String() string { return c.id.String() }
func (c *Client) IsServer() bool { return c.conn.IsServer() }

func (c *Client) OnPacket(fn func(packet api.In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

// Listen starts processing of the socket messages.
func (c *Client) Listen() { c.conn.Listen() }

func (c *Client) Close() {
	c.conn.Close()
	c.drain(errConnClosed)
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.conn.Done }

// Exchange sends a packet and waits for a reply with the same id.
func (c *Client) Exchange(t api.PT, payload any) (api.In, error) {
	id := strconv.FormatUint(c.seq.Add(1), 10)
	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id] = task
	c.mu.Unlock()
	if err := c.Send(api.Out{Id: id, T: t, Payload: payload}); err != nil {
		c.pop(id)
		return api.In{}, err
	}
	select {
	case <-task.done:
	case <-time.After(callTimeout):
		if c.pop(id) != nil {
			return api.In{}, errTimeout
		}
		<-task.done
	}
	return task.Response, task.err
}

// Call returns the reply payload of the packet, an error packet
// in reply is returned as ErrRemote.
func (c *Client) Call(t api.PT, payload any) ([]byte, error) {
	in, err := c.Exchange(t, payload)
	if err != nil {
		return nil, err
	}
	if in.T == api.Error {
		var e api.ErrorResponse
		_ = json.Unmarshal(in.Payload, &e)
		return in.Payload, fmt.Errorf("%w %v: %v", ErrRemote, e.Code, e.Message)
	}
	return in.Payload, nil
}

// Notify sends a packet without waiting for anything.
func (c *Client) Notify(t api.PT, payload any) {
	if err := c.Send(api.Out{T: t, Payload: payload}); err != nil {
		c.log.Error().Err(err).Msgf("notify %v", t)
	}
}

// Reply answers the request packet.
func (c *Client) Reply(in api.In, payload any) {
	if err := c.Send(api.Out{Id: in.Id, T: in.T, Payload: payload}); err != nil {
		c.log.Error().Err(err).Msgf("reply %v", in.T)
	}
}

func (c *Client) Send(packet api.Out) error {
	r, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", packet.T)
	c.conn.Write(r)
	return nil
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}

	var res api.In
	if err = json.Unmarshal(message, &res); err != nil {
		c.log.Warn().Err(err).Msg("malformed packet")
		return
	}

	// only the calling side tracks responses
	if !c.IsServer() && res.Id != "" {
		if task := c.pop(res.Id); task != nil {
			task.Response = res
			close(task.done)
			return
		}
	}
	c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", res.T)
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	fn(res)
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id string) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for id, task := range c.queue {
		task.err = err
		close(task.done)
		delete(c.queue, id)
	}
	c.mu.Unlock()
}
