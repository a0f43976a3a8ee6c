package transport

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
)

type hubHarness struct {
	hub    *Hub
	server *httptest.Server
	conn   *websocket.Conn
}

func newHubHarness(t *testing.T, register func(h *Hub)) *hubHarness {
	t.Helper()

	loop := engine.NewLoop(64)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	hub := NewHub(loop.Post, slog.Default())
	register(hub)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return &hubHarness{hub: hub, server: server, conn: conn}
}

func (h *hubHarness) send(t *testing.T, msg clientMessage) {
	t.Helper()
	frame, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
}

func (h *hubHarness) read(t *testing.T) envelope {
	t.Helper()
	h.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := h.conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHub_SnapshotOnSubscribe(t *testing.T) {
	var pub Publisher[domain.FairValue]
	h := newHubHarness(t, func(hub *Hub) {
		pub = NewPublisher[domain.FairValue](hub, "fairValue")
		pub.RegisterSnapshot(func() []domain.FairValue {
			return []domain.FairValue{{Price: 100}, {Price: 101}}
		})
	})

	h.send(t, clientMessage{Op: "subscribe", Topic: "fairValue"})

	for _, want := range []float64{100, 101} {
		env := h.read(t)
		if env.Topic != "fairValue" || env.Kind != "snapshot" {
			t.Fatalf("envelope %+v", env)
		}
		var fv domain.FairValue
		if err := json.Unmarshal(env.Data, &fv); err != nil {
			t.Fatal(err)
		}
		if fv.Price != want {
			t.Errorf("snapshot price %v, want %v", fv.Price, want)
		}
	}
}

func TestHub_DeltaAfterSubscribe(t *testing.T) {
	var pub Publisher[domain.FairValue]
	h := newHubHarness(t, func(hub *Hub) {
		pub = NewPublisher[domain.FairValue](hub, "fairValue")
		pub.RegisterSnapshot(func() []domain.FairValue { return nil })
	})

	h.send(t, clientMessage{Op: "subscribe", Topic: "fairValue"})
	// subscription is applied by the read pump; give the snapshot post a turn
	time.Sleep(50 * time.Millisecond)

	pub.Publish(domain.FairValue{Price: 102})

	env := h.read(t)
	if env.Kind != "delta" || env.Topic != "fairValue" {
		t.Fatalf("envelope %+v", env)
	}
	var fv domain.FairValue
	if err := json.Unmarshal(env.Data, &fv); err != nil {
		t.Fatal(err)
	}
	if fv.Price != 102 {
		t.Errorf("delta price %v", fv.Price)
	}
}

func TestHub_UnsubscribedTopicNotDelivered(t *testing.T) {
	var fvPub, otherPub Publisher[domain.FairValue]
	h := newHubHarness(t, func(hub *Hub) {
		fvPub = NewPublisher[domain.FairValue](hub, "fairValue")
		otherPub = NewPublisher[domain.FairValue](hub, "other")
	})

	h.send(t, clientMessage{Op: "subscribe", Topic: "fairValue"})
	time.Sleep(50 * time.Millisecond)

	otherPub.Publish(domain.FairValue{Price: 1})
	fvPub.Publish(domain.FairValue{Price: 2})

	env := h.read(t)
	if env.Topic != "fairValue" {
		t.Fatalf("received unsubscribed topic %q", env.Topic)
	}
}

func TestHub_RoutesCommandsToReceiver(t *testing.T) {
	got := make(chan domain.OrderCancel, 1)
	h := newHubHarness(t, func(hub *Hub) {
		rec := NewReceiver[domain.OrderCancel](hub, "cancelOrder")
		rec.RegisterReceiver(func(cxl domain.OrderCancel) { got <- cxl })
	})

	payload, _ := json.Marshal(map[string]string{"origOrderId": "o1"})
	h.send(t, clientMessage{Op: "message", Topic: "cancelOrder", Data: payload})

	select {
	case cxl := <-got:
		if cxl.OrigOrderID != "o1" {
			t.Errorf("cancel %+v", cxl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the receiver")
	}
}

func TestHub_MalformedCommandIgnored(t *testing.T) {
	got := make(chan domain.OrderCancel, 1)
	h := newHubHarness(t, func(hub *Hub) {
		rec := NewReceiver[domain.OrderCancel](hub, "cancelOrder")
		rec.RegisterReceiver(func(cxl domain.OrderCancel) { got <- cxl })
	})

	h.send(t, clientMessage{Op: "message", Topic: "cancelOrder", Data: json.RawMessage(`123`)})
	h.send(t, clientMessage{Op: "bogus", Topic: "cancelOrder"})

	select {
	case cxl := <-got:
		t.Fatalf("malformed command delivered: %+v", cxl)
	case <-time.After(200 * time.Millisecond):
	}
}
