// Package gateway is the adapter to the WhatsApp automation gateway: a
// sidecar process that drives the actual messaging client and speaks a
// small JSON protocol over a websocket. The rest of the system only ever
// sees typed events and the Reply/FetchMedia operations.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/zapbridge/zapbridge/internal/session"
)

// CredentialCarrier persists session credential blobs the gateway pushes
// and replays them on connect. Nil when the gateway persists credentials
// itself (local policy auth dir) or nothing is persisted at all
// (ephemeral policy). store.Repository satisfies it.
type CredentialCarrier interface {
	PutCredential(ctx context.Context, namespace string, blob []byte) error
	GetCredential(ctx context.Context, namespace string) ([]byte, error)
}

// mediaResult is the resolution of one in-flight media fetch.
type mediaResult struct {
	data     []byte
	mimeType string
	err      error
}

// Client maintains the websocket connection to the automation gateway.
type Client struct {
	url          string
	namespace    string
	authDir      string
	fetchTimeout time.Duration
	creds        CredentialCarrier

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan mediaResult

	events chan Event
}

// New creates a gateway client. authDir is empty unless the local
// credential policy is active; the gateway then persists session material
// into that directory. creds is non-nil only for the remote policy, where
// the bridge persists the session blobs instead.
func New(url, namespace, authDir string, fetchTimeout time.Duration, creds CredentialCarrier) *Client {
	return &Client{
		url:          url,
		namespace:    namespace,
		authDir:      authDir,
		fetchTimeout: fetchTimeout,
		creds:        creds,
		pending:      make(map[string]chan mediaResult),
		events:       make(chan Event, 64),
	}
}

// Events returns the stream of decoded gateway events. The channel is
// shared across reconnects and never closed by the read loop.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect dials the gateway, announces the credential namespace, and
// starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", c.url, err)
	}
	// Media payloads can be large.
	conn.SetReadLimit(64 * 1024 * 1024)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "replaced")
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(ctx, envelope{
		Type:      typeInit,
		Namespace: c.namespace,
		AuthDir:   c.authDir,
	}); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	if err := c.replayCredentials(ctx); err != nil {
		return err
	}

	go c.readLoop(ctx, conn)

	slog.Info("Gateway connected", "url", c.url, "namespace", c.namespace)
	return nil
}

// Reconnect re-establishes a dropped connection using the same namespace,
// so the gateway resumes with existing credentials. Single attempt; the
// session manager decides when to call it.
func (c *Client) Reconnect(ctx context.Context) error {
	slog.Info("Reconnecting to gateway", "url", c.url)
	return c.Connect(ctx)
}

// Close tears down the connection and fails all in-flight fetches.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	for id, ch := range c.pending {
		ch <- mediaResult{err: fmt.Errorf("gateway closed")}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
	return nil
}

// readLoop decodes envelopes until the connection dies. Lifecycle and
// message envelopes go to the events channel; media envelopes resolve
// their pending fetch.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleReadError(ctx, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Undecodable gateway envelope", "error", err)
			continue
		}

		switch {
		case env.Type == typeMedia:
			c.resolveMedia(&env)
		case env.Type == typeCredentials:
			c.storeCredentials(ctx, &env)
		case env.Type == typeMessage:
			if env.Message == nil {
				slog.Warn("Message envelope without payload")
				continue
			}
			c.emit(ctx, Event{Message: env.Message})
		default:
			if sev := env.sessionEvent(); sev != nil {
				c.emit(ctx, Event{Session: sev})
			} else {
				slog.Warn("Unknown gateway envelope type", "type", env.Type)
			}
		}
	}
}

// handleReadError classifies the read failure and, unless the process is
// shutting down, surfaces a transient disconnect so the session manager
// can ask for a reconnect.
func (c *Client) handleReadError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	if IsBenignProtocolError(err) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		slog.Debug("Gateway connection closed", "error", err)
	} else {
		slog.Warn("Unexpected gateway read error", "error", err)
	}

	c.emit(ctx, Event{Session: &session.ConnectionEvent{
		Type:   session.EventDisconnected,
		Reason: "gateway connection lost",
	}})
}

// emit delivers an event unless the process is shutting down, so the read
// loop never hangs on a consumer that already exited.
func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// replayCredentials sends the persisted session blob to the gateway so it
// can restore the session instead of forcing a fresh pairing.
func (c *Client) replayCredentials(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}

	blob, err := c.creds.GetCredential(ctx, c.namespace)
	if err != nil {
		return fmt.Errorf("load session credentials: %w", err)
	}
	if len(blob) == 0 {
		slog.Info("No stored session credentials to replay", "namespace", c.namespace)
		return nil
	}

	if err := c.write(ctx, envelope{
		Type:      typeCredentials,
		Namespace: c.namespace,
		Data:      base64.StdEncoding.EncodeToString(blob),
	}); err != nil {
		return fmt.Errorf("replay session credentials: %w", err)
	}
	slog.Info("Replayed stored session credentials", "namespace", c.namespace)
	return nil
}

// storeCredentials persists a credential blob pushed by the gateway.
func (c *Client) storeCredentials(ctx context.Context, env *envelope) {
	if c.creds == nil {
		slog.Debug("Ignoring credential envelope, gateway owns persistence")
		return
	}

	blob, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		slog.Warn("Undecodable credential payload", "error", err)
		return
	}
	namespace := env.Namespace
	if namespace == "" {
		namespace = c.namespace
	}
	if err := c.creds.PutCredential(ctx, namespace, blob); err != nil {
		slog.Error("Failed to persist session credentials", "namespace", namespace, "error", err)
		return
	}
	slog.Info("Session credentials persisted", "namespace", namespace)
}

// Reply sends an outbound text message into a conversation.
func (c *Client) Reply(ctx context.Context, chatID, text string) error {
	return c.write(ctx, envelope{Type: typeReply, ChatID: chatID, Text: text})
}

// FetchMedia downloads the attachment payload of a message. Blocking, one
// request at a time per message; bounded by the configured fetch timeout.
func (c *Client) FetchMedia(ctx context.Context, messageID string) ([]byte, string, error) {
	reqID := uuid.NewString()
	ch := make(chan mediaResult, 1)

	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, envelope{
		Type:      typeFetchMedia,
		RequestID: reqID,
		MessageID: messageID,
	}); err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	select {
	case res := <-ch:
		return res.data, res.mimeType, res.err
	case <-ctx.Done():
		return nil, "", fmt.Errorf("media fetch timed out: %w", ctx.Err())
	}
}

// resolveMedia hands a media envelope to its waiting fetch, if any.
func (c *Client) resolveMedia(env *envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.RequestID]
	if ok {
		delete(c.pending, env.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		slog.Debug("Media response without waiter", "request_id", env.RequestID)
		return
	}

	if env.Error != "" {
		ch <- mediaResult{err: fmt.Errorf("gateway media error: %s", env.Error)}
		return
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		ch <- mediaResult{err: fmt.Errorf("decode media payload: %w", err)}
		return
	}
	ch <- mediaResult{data: data, mimeType: env.MimeType}
}

// write marshals and sends one envelope. Serialized so concurrent replies
// and fetches do not interleave frames.
func (c *Client) write(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}
