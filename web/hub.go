package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/versa-dev/versa/internal/metrics"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub tracks the connected HMR clients.
type hub struct {
	lock  sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: map[*websocket.Conn]struct{}{}}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Bad Request", 400)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has replied already
		return
	}
	h.lock.Lock()
	h.conns[conn] = struct{}{}
	h.lock.Unlock()
	metrics.HMRClients.Inc()
	defer func() {
		h.remove(conn)
	}()
	// the client never sends anything but pings, reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.lock.Unlock()
	if ok {
		metrics.HMRClients.Dec()
		conn.Close()
	}
}

// broadcast sends the message to every client. Clients that can not be
// written to are dropped.
func (h *hub) broadcast(msg string) {
	h.lock.Lock()
	var failed []*websocket.Conn
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.Debugf("hmr: drop client %s: %v", conn.RemoteAddr(), err)
			failed = append(failed, conn)
		}
	}
	h.lock.Unlock()
	for _, conn := range failed {
		h.remove(conn)
	}
}

func (h *hub) len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.conns)
}

func (h *hub) close() {
	h.lock.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.lock.Unlock()
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		h.remove(conn)
	}
}
