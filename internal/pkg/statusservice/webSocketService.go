package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn WsConn
	lock sync.Mutex
}

func (c *wsClient) write(v interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteJSON(v)
}

// WSConnKeeper maps subscribed audio IDs to websocket connections.
// A client subscribes by sending the audio ID as a text message,
// a new message moves the connection to the new ID.
type WSConnKeeper struct {
	byID    map[string]map[WsConn]*wsClient
	idOf    map[WsConn]string
	lock    sync.Mutex
	timeOut time.Duration
}

// NewWSConnKeeper creates manager, idle connections are dropped after timeOut
func NewWSConnKeeper(timeOut time.Duration) *WSConnKeeper {
	if timeOut <= 0 {
		timeOut = time.Minute * 30
	}
	return &WSConnKeeper{byID: map[string]map[WsConn]*wsClient{}, idOf: map[WsConn]string{}, timeOut: timeOut}
}

// HandleConnection loops until connection is active or idle for too long
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.deleteConnection(conn)
	defer conn.Close()
	readCh := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(readCh)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Debug().Err(err).Msg("ws read")
				return
			}
			if msg := strings.TrimSpace(string(message)); msg != "" {
				select {
				case readCh <- msg:
				case <-done:
					return
				}
			}
		}
	}()

	client := &wsClient{conn: conn}
	timer := time.NewTimer(kp.timeOut)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			goapp.Log.Debug().Msg("ws connection idle timeout")
			return nil
		case msg, ok := <-readCh:
			if !ok {
				return nil
			}
			kp.saveConnection(client, msg)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(kp.timeOut)
		}
	}
}

func (kp *WSConnKeeper) deleteConnection(conn WsConn) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.deleteConnectionNoSync(conn)
	goapp.Log.Debug().Int("active", len(kp.idOf)).Msg("ws connection removed")
}

func (kp *WSConnKeeper) deleteConnectionNoSync(conn WsConn) {
	if id, found := kp.idOf[conn]; found {
		if conns, found := kp.byID[id]; found {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.byID, id)
			}
		}
	}
	delete(kp.idOf, conn)
}

func (kp *WSConnKeeper) saveConnection(client *wsClient, id string) {
	goapp.Log.Info().Str("ID", goapp.Sanitize(id)).Msg("ws subscribe")
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.deleteConnectionNoSync(client.conn)
	kp.idOf[client.conn] = id
	conns, found := kp.byID[id]
	if !found {
		conns = map[WsConn]*wsClient{}
		kp.byID[id] = conns
	}
	conns[client.conn] = client
}

// HasConnections reports whether anyone listens for the id
func (kp *WSConnKeeper) HasConnections(id string) bool {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	return len(kp.byID[id]) > 0
}

// Send writes v to every connection subscribed to id, returns the number of successful writes
func (kp *WSConnKeeper) Send(id string, v interface{}) int {
	kp.lock.Lock()
	clients := make([]*wsClient, 0, len(kp.byID[id]))
	for _, c := range kp.byID[id] {
		clients = append(clients, c)
	}
	kp.lock.Unlock()

	res := 0
	for _, c := range clients {
		if err := c.write(v); err != nil {
			goapp.Log.Warn().Err(err).Str("ID", id).Msg("can't write to websocket")
			continue
		}
		res++
	}
	return res
}
