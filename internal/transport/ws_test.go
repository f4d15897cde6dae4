package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pumploss/internal/classifier"
)

func wsTestServer(t *testing.T, messages ...[]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func receiveBatch(t *testing.T, feed *WSFeed) []classifier.TransactionPayload {
	t.Helper()
	select {
	case batch := <-feed.Batches():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestWSFeed_DeliversArrayBatch(t *testing.T) {
	payloads := []classifier.TransactionPayload{
		{Signature: "sig-array-1", Timestamp: 1700000000},
		{Signature: "sig-array-2", Timestamp: 1700000001},
	}
	data, err := json.Marshal(payloads)
	if err != nil {
		t.Fatalf("marshal payloads: %v", err)
	}

	srv := wsTestServer(t, data)
	defer srv.Close()

	feed, err := NewWSFeed(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	if err != nil {
		t.Fatalf("connect feed: %v", err)
	}
	defer feed.Close()

	batch := receiveBatch(t, feed)
	if len(batch) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(batch))
	}
	if batch[0].Signature != "sig-array-1" {
		t.Errorf("unexpected first signature %s", batch[0].Signature)
	}
}

func TestWSFeed_AcceptsSingleObject(t *testing.T) {
	single, err := json.Marshal(classifier.TransactionPayload{Signature: "sig-single", Timestamp: 1700000000})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	srv := wsTestServer(t, single)
	defer srv.Close()

	feed, err := NewWSFeed(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	if err != nil {
		t.Fatalf("connect feed: %v", err)
	}
	defer feed.Close()

	batch := receiveBatch(t, feed)
	if len(batch) != 1 || batch[0].Signature != "sig-single" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestWSFeed_IgnoresUndecodableMessages(t *testing.T) {
	good, _ := json.Marshal([]classifier.TransactionPayload{{Signature: "sig-good"}})

	srv := wsTestServer(t, []byte("not json"), good)
	defer srv.Close()

	feed, err := NewWSFeed(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	if err != nil {
		t.Fatalf("connect feed: %v", err)
	}
	defer feed.Close()

	batch := receiveBatch(t, feed)
	if len(batch) != 1 || batch[0].Signature != "sig-good" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestWSFeed_SurvivesFailedRedial(t *testing.T) {
	upgrader := websocket.Upgrader{}
	greeting, _ := json.Marshal([]classifier.TransactionPayload{{Signature: "sig-greeting"}})
	// http.Server.Close does not close hijacked connections, so track the
	// upgraded conns and close them explicitly when tearing the server down.
	var connsMu sync.Mutex
	var conns []*websocket.Conn
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connsMu.Lock()
		conns = append(conns, conn)
		connsMu.Unlock()
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, greeting); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	first := &http.Server{Handler: handler}
	go first.Serve(ln)

	cfg := DefaultWSFeedConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	feed, err := NewWSFeed(context.Background(), "ws://"+addr, &cfg, nil)
	if err != nil {
		t.Fatalf("connect feed: %v", err)
	}
	defer feed.Close()

	if batch := receiveBatch(t, feed); batch[0].Signature != "sig-greeting" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	// Take the server down long enough for at least one redial to fail,
	// then bring it back on the same address.
	first.Close()
	connsMu.Lock()
	for _, c := range conns {
		c.Close()
	}
	conns = nil
	connsMu.Unlock()
	time.Sleep(150 * time.Millisecond)

	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("relisten: %v", err)
	}
	second := &http.Server{Handler: handler}
	go second.Serve(ln2)
	defer second.Close()

	if batch := receiveBatch(t, feed); batch[0].Signature != "sig-greeting" {
		t.Fatalf("unexpected batch after reconnect: %+v", batch)
	}
}

func TestWSFeed_CloseIsIdempotent(t *testing.T) {
	srv := wsTestServer(t)
	defer srv.Close()

	feed, err := NewWSFeed(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	if err != nil {
		t.Fatalf("connect feed: %v", err)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// The batch channel is closed after shutdown.
	if _, ok := <-feed.Batches(); ok {
		t.Error("expected closed batch channel")
	}
}
