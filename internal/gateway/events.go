package gateway

import (
	"strings"

	"github.com/zapbridge/zapbridge/internal/domain"
	"github.com/zapbridge/zapbridge/internal/session"
)

// Envelope type tags on the gateway websocket protocol.
const (
	typeQR            = "qr"
	typeAuthenticated = "authenticated"
	typeAuthFailure   = "auth_failure"
	typeDisconnected  = "disconnected"
	typeMessage       = "message"
	typeMedia         = "media"

	typeInit       = "init"
	typeReply      = "reply"
	typeFetchMedia = "fetch_media"

	// typeCredentials flows both ways: the gateway pushes updated session
	// material for the bridge to persist, and the bridge replays the stored
	// blob right after init so the gateway can restore the session.
	typeCredentials = "credentials"
)

// envelope is the wire format exchanged with the automation gateway. One
// struct for both directions; unused fields stay empty.
type envelope struct {
	Type string `json:"type"`

	// Lifecycle events (gateway -> bridge).
	Code     string `json:"code,omitempty"`
	Identity string `json:"identity,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Logout   bool   `json:"logout,omitempty"`

	// Inbound message event.
	Message *domain.Message `json:"message,omitempty"`

	// Media fetch request/response correlation.
	RequestID string `json:"request_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Data      string `json:"data,omitempty"` // base64 payload
	MimeType  string `json:"mime_type,omitempty"`
	Error     string `json:"error,omitempty"`

	// Outbound reply.
	ChatID string `json:"chat_id,omitempty"`
	Text   string `json:"text,omitempty"`

	// Session bootstrap (bridge -> gateway).
	Namespace string `json:"namespace,omitempty"`
	AuthDir   string `json:"auth_dir,omitempty"`
}

// Event is a single decoded gateway notification: either a connection
// lifecycle event or an inbound message, never both.
type Event struct {
	Session *session.ConnectionEvent
	Message *domain.Message
}

// sessionEvent converts a lifecycle envelope into the session manager's
// typed event, or nil for non-lifecycle envelopes.
func (e *envelope) sessionEvent() *session.ConnectionEvent {
	switch e.Type {
	case typeQR:
		return &session.ConnectionEvent{Type: session.EventPairingCode, Code: e.Code}
	case typeAuthenticated:
		return &session.ConnectionEvent{Type: session.EventAuthenticated, Identity: e.Identity}
	case typeAuthFailure:
		return &session.ConnectionEvent{Type: session.EventAuthFailed, Reason: e.Reason}
	case typeDisconnected:
		return &session.ConnectionEvent{Type: session.EventDisconnected, Reason: e.Reason, Logout: e.Logout}
	default:
		return nil
	}
}

// benignPatterns are protocol-level failure fragments the underlying
// automation layer emits during ordinary teardown. Errors matching them are
// discarded instead of logged as unexpected.
var benignPatterns = []string{
	"session closed",
	"target closed",
	"use of closed network connection",
	"connection reset by peer",
}

// IsBenignProtocolError reports whether the error is known-benign transport
// noise. The classification happens here, at the adapter boundary, so the
// core never matches on raw platform error strings.
func IsBenignProtocolError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range benignPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
