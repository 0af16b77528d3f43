package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// fakeGateway accepts one websocket connection, records inbound envelopes,
// answers fetch_media requests with a fixed payload, and pushes any
// preloaded envelopes after announcing the session.
type fakeGateway struct {
	received chan envelope
	push     []envelope
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	ctx := r.Context()

	// Announce the linked session right after the handshake.
	ready, _ := json.Marshal(envelope{Type: typeAuthenticated, Identity: "5511999999999"})
	if err := conn.Write(ctx, websocket.MessageText, ready); err != nil {
		return
	}

	for _, env := range g.push {
		data, _ := json.Marshal(env)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		g.received <- env

		if env.Type == typeFetchMedia {
			resp, _ := json.Marshal(envelope{
				Type:      typeMedia,
				RequestID: env.RequestID,
				Data:      base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
				MimeType:  "image/jpeg",
			})
			if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
				return
			}
		}
	}
}

func (g *fakeGateway) next(t *testing.T) envelope {
	t.Helper()
	select {
	case env := <-g.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for envelope")
		return envelope{}
	}
}

func newTestClient(t *testing.T, creds CredentialCarrier, push ...envelope) (*Client, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{received: make(chan envelope, 8), push: push}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, "whatsapp-bot-test", "/tmp/auth", 2*time.Second, creds)
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c, gw
}

func TestConnectSendsInitAndDeliversEvents(t *testing.T) {
	c, gw := newTestClient(t, nil)

	init := gw.next(t)
	if init.Type != typeInit || init.Namespace != "whatsapp-bot-test" || init.AuthDir != "/tmp/auth" {
		t.Errorf("Expected init envelope with namespace and auth dir, got %+v", init)
	}

	select {
	case ev := <-c.Events():
		if ev.Session == nil || ev.Session.Identity != "5511999999999" {
			t.Errorf("Expected authenticated session event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for session event")
	}
}

func TestReplySendsEnvelope(t *testing.T) {
	c, gw := newTestClient(t, nil)
	gw.next(t) // init

	if err := c.Reply(context.Background(), "chat-1", "oi"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	env := gw.next(t)
	if env.Type != typeReply || env.ChatID != "chat-1" || env.Text != "oi" {
		t.Errorf("Expected reply envelope, got %+v", env)
	}
}

func TestFetchMediaRoundTrip(t *testing.T) {
	c, gw := newTestClient(t, nil)
	gw.next(t) // init

	data, mimeType, err := c.FetchMedia(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("FetchMedia failed: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Expected decoded payload, got %q", data)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", mimeType)
	}

	req := gw.next(t)
	if req.Type != typeFetchMedia || req.MessageID != "msg-1" || req.RequestID == "" {
		t.Errorf("Expected correlated fetch request, got %+v", req)
	}
}

func TestFetchMediaWithoutConnection(t *testing.T) {
	c := New("ws://127.0.0.1:0", "ns", "", time.Second, nil)

	if _, _, err := c.FetchMedia(context.Background(), "msg-1"); err == nil {
		t.Error("Expected error when not connected")
	}
}

// fakeCarrier records persisted blobs and serves a preloaded one.
type fakeCarrier struct {
	blob []byte
	puts chan []byte
}

func (f *fakeCarrier) PutCredential(_ context.Context, _ string, blob []byte) error {
	f.puts <- blob
	return nil
}

func (f *fakeCarrier) GetCredential(context.Context, string) ([]byte, error) {
	return f.blob, nil
}

func TestCredentialPushIsPersisted(t *testing.T) {
	carrier := &fakeCarrier{puts: make(chan []byte, 1)}
	push := envelope{
		Type:      typeCredentials,
		Namespace: "whatsapp-bot-test",
		Data:      base64.StdEncoding.EncodeToString([]byte("session-blob")),
	}
	newTestClient(t, carrier, push)

	select {
	case blob := <-carrier.puts:
		if string(blob) != "session-blob" {
			t.Errorf("Expected decoded blob persisted, got %q", blob)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for credential persistence")
	}
}

func TestConnectReplaysStoredCredentials(t *testing.T) {
	carrier := &fakeCarrier{blob: []byte("stored-blob"), puts: make(chan []byte, 1)}
	_, gw := newTestClient(t, carrier)

	init := gw.next(t)
	if init.Type != typeInit {
		t.Fatalf("Expected init first, got %+v", init)
	}

	replay := gw.next(t)
	if replay.Type != typeCredentials || replay.Namespace != "whatsapp-bot-test" {
		t.Fatalf("Expected credential replay after init, got %+v", replay)
	}
	blob, err := base64.StdEncoding.DecodeString(replay.Data)
	if err != nil || string(blob) != "stored-blob" {
		t.Errorf("Expected stored blob replayed, got %q (err=%v)", blob, err)
	}
}

func TestConnectWithoutStoredCredentialsSkipsReplay(t *testing.T) {
	carrier := &fakeCarrier{puts: make(chan []byte, 1)}
	c, gw := newTestClient(t, carrier)

	gw.next(t) // init

	// The next envelope the server sees must be an ordinary operation,
	// not an empty credential replay.
	if err := c.Reply(context.Background(), "chat-1", "oi"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	env := gw.next(t)
	if env.Type != typeReply {
		t.Errorf("Expected reply envelope, got %+v", env)
	}
}

func TestEmitDoesNotBlockAfterShutdown(t *testing.T) {
	c := New("ws://127.0.0.1:0", "ns", "", time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < cap(c.events); i++ {
		c.events <- Event{}
	}

	done := make(chan struct{})
	go func() {
		c.emit(ctx, Event{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked with a full channel after cancellation")
	}
}
