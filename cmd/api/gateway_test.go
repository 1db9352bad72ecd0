package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"github.com/gorilla/websocket"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthz(t *testing.T) {
	j := auth.NewJWTManager("s", time.Hour)
	for _, tc := range []struct {
		err  error
		want int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		rec := httptest.NewRecorder()
		newGateway(fakePinger{tc.err}, j, realtime.NewBroker(1)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tc.want {
			t.Fatalf("healthz with err=%v: got %d want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestWebSocketFeed(t *testing.T) {
	j := auth.NewJWTManager("s", time.Hour)
	broker := realtime.NewBroker(4)
	ts := httptest.NewServer(newGateway(fakePinger{}, j, broker))
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// bad table and missing token never upgrade
	if _, resp, err := websocket.DefaultDialer.Dial(base+"?table=posts", nil); err == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown table, got %v", err)
	}
	if _, resp, err := websocket.DefaultDialer.Dial(base+"?table=messages", nil); err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}

	token, _, err := j.GenerateToken("u1", "u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(base+"?table=messages&access_token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the handler subscribes right after the upgrade
	deadline := time.Now().Add(time.Second)
	for broker.Count("u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c, _ := realtime.NewChange(v1.TableMessages, v1.OpInsert, nil, map[string]string{"id": "m1"}, "u1")
	broker.Publish(c)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev v1.ChangeEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Op != v1.OpInsert || !strings.Contains(string(ev.Current), "m1") {
		t.Fatalf("unexpected event %+v", ev)
	}
}
