package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// pinger reports store health.
type pinger interface {
	Ping(ctx context.Context) error
}

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// newGateway serves /healthz and the /ws change feed for browser clients.
func newGateway(p pinger, j *auth.JWTManager, broker *realtime.Broker) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthz(p)).Methods(http.MethodGet)
	r.Handle("/ws", &wsHandler{auth: j, broker: broker}).Methods(http.MethodGet)
	return r
}

func healthz(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := p.Ping(ctx); err != nil {
			log.Warningf("health check failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

type wsHandler struct {
	auth   *auth.JWTManager
	broker *realtime.Broker
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if !validTable(table) {
		http.Error(w, "unknown table", http.StatusBadRequest)
		return
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Error upgrading to websockets: %v", err)
		return
	}
	sub := h.broker.Subscribe(claims.UserID, table)
	log.Debugf("ws subscriber %s user=%s table=%s", sub.ID, claims.UserID, table)

	go writer(conn, sub)
	reader(conn)
	sub.Close()
}

// reader drains client frames so control messages are processed; it returns
// when the peer goes away.
func reader(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writer is the only goroutine that writes to conn.
func writer(conn *websocket.Conn, sub *realtime.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case c, ok := <-sub.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resubscribe"))
				return
			}
			if err := conn.WriteJSON(toChangeEvent(c)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
