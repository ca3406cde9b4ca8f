// Package observer streams the simulation's event feed to read-only
// websocket clients. Observers never mutate the world; the server only fans
// out what the simulation publishes on its bus.
package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/events"
	"runnervale.ai/internal/sim/world"
)

const (
	writeTimeout = 5 * time.Second
	// sendBuffer bounds per-observer queueing; a client that cannot drain
	// this many frames is dropped rather than stalling the broadcast.
	sendBuffer = 1024
)

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	params  protocol.WorldParams
	worldID string
	tick    atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]*client
	nextID  atomic.Uint64
}

// NewServer captures the static world parameters for the welcome frame and
// subscribes to the world's bus. Must be called before the tick loop starts;
// afterwards the bus delivers frames on the simulation goroutine and
// Broadcast hands them to per-client writers.
func NewServer(w *world.World, logger *log.Logger) *Server {
	cfg := w.Config()
	tun := w.Tuning()
	s := &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		params: protocol.WorldParams{
			TickRateHz:     tun.TickRateHz,
			InventorySlots: tun.InventorySlots,
			StackSize:      tun.StackSize,
			HubNodeID:      w.HubNodeID(),
			Seed:           cfg.Seed,
		},
		worldID: cfg.ID,
		clients: map[uint64]*client{},
	}
	w.Bus().Subscribe(events.TypeAll, s.onEvent)
	return s
}

// onEvent runs on the simulation goroutine.
func (s *Server) onEvent(ev protocol.Event) {
	var frame any
	switch e := ev.(type) {
	case protocol.TickCompleted:
		s.tick.Store(e.Tick + 1)
		frame = protocol.TickMsg{
			Type: protocol.TypeTick, ProtocolVersion: protocol.Version,
			Tick: e.Tick, Digest: e.Digest,
		}
	default:
		frame = protocol.EventMsg{
			Type: protocol.TypeEvent, ProtocolVersion: protocol.Version,
			Tick: s.tick.Load(), Event: ev,
		}
	}
	b, err := json.Marshal(frame)
	if err != nil {
		s.log.Printf("observer: marshal frame: %v", err)
		return
	}
	s.broadcast(b)
}

func (s *Server) broadcast(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.send <- b:
		default:
			// Slow observer: drop it instead of blocking the tick.
			delete(s.clients, id)
			c.close()
			s.log.Printf("observer: dropped slow client %d", id)
		}
	}
}

// ClientCount reports the number of attached observers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// BootstrapHandler serves the welcome payload over plain HTTP for tooling
// that wants world parameters without holding a socket open.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.welcome())
	}
}

func (s *Server) welcome() protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         s.worldID,
		Tick:            s.tick.Load(),
		WorldParams:     s.params,
	}
}

// WSHandler upgrades the connection, sends the welcome frame and then
// streams EVENT and TICK frames until the client goes away.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(s.welcome()); err != nil {
			return
		}

		c := &client{
			id:   s.nextID.Add(1),
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		s.mu.Lock()
		s.clients[c.id] = c
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			c.close()
		}()

		writeErr := make(chan error, 1)
		go func() {
			for b := range c.send {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
				time.Now().Add(time.Second))
			writeErr <- nil
		}()

		// Observers are read-only; the reader loop exists to notice the
		// close. Anything they send is discarded.
		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					readErr <- err
					return
				}
			}
		}()

		select {
		case <-writeErr:
		case <-readErr:
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
