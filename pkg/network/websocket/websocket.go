package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	sendQueue      = 64
)

type WS struct {
	conn     *websocket.Conn
	send     chan []byte
	isServer bool
	log      *logger.Logger

	OnMessage WSMessageHandler

	once   sync.Once
	closed chan struct{}
	Done   chan struct{}
}

type WSMessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(*http.Request) bool { return true },
	},
}

// NewUpgrader makes an upgrader accepting connections only from the origin,
// an empty origin accepts any.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, isServer bool, log *logger.Logger) *WS {
	return &WS{
		conn:      conn,
		send:      make(chan []byte, sendQueue),
		isServer:  isServer,
		log:       log,
		OnMessage: func([]byte, error) {},
		closed:    make(chan struct{}),
		Done:      make(chan struct{}),
	}
}

func (ws *WS) IsServer() bool { return ws.isServer }

// Listen starts the socket pumps, Done is closed when both of them exit.
func (ws *WS) Listen() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ws.reader() }()
	go func() { defer wg.Done(); ws.writer() }()
	go func() { wg.Wait(); close(ws.Done) }()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.shutdown()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.isServer {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error { return ws.conn.SetReadDeadline(time.Now().Add(pongTime)) })
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn().Err(err).Msg("WebSocket read fail")
			}
			return
		}
		ws.OnMessage(message, nil)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	ticker := time.NewTicker(pingTime)
	defer func() {
		ticker.Stop()
		_ = ws.conn.Close()
	}()
	for {
		select {
		case message := <-ws.send:
			if err := ws.write(websocket.TextMessage, message); err != nil {
				ws.log.Warn().Err(err).Msg("WebSocket write fail")
				ws.shutdown()
				return
			}
		case <-ticker.C:
			if !ws.isServer {
				continue
			}
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				ws.shutdown()
				return
			}
		case <-ws.closed:
			_ = ws.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (ws *WS) write(t int, message []byte) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteMessage(t, message)
}

// Write queues a message, messages sent after close are dropped.
func (ws *WS) Write(data []byte) {
	select {
	case ws.send <- data:
	case <-ws.closed:
	}
}

func (ws *WS) Close() { ws.shutdown() }

func (ws *WS) shutdown() { ws.once.Do(func() { close(ws.closed) }) }
