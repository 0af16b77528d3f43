// Package relay classifies inbound messages, drives the per-sender
// configuration dialog, and orchestrates the attachment-to-email relay.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zapbridge/zapbridge/internal/dialog"
	"github.com/zapbridge/zapbridge/internal/domain"
	"github.com/zapbridge/zapbridge/internal/mailer"
)

// ConfigTrigger is the token that opens the configuration dialog. Matched
// case-insensitively, direct conversations only.
const ConfigTrigger = "#CONFIG"

// emailPattern is the address-syntax gate for configured emails.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Replier sends an outbound text reply into a conversation.
type Replier interface {
	Reply(ctx context.Context, chatID, text string) error
}

// MediaFetcher downloads an attachment payload by message reference.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, messageID string) (data []byte, mimeType string, err error)
}

// Transport is the messaging-side collaborator surface the engine needs.
type Transport interface {
	Replier
	MediaFetcher
}

// AuthGate reports whether the messaging session is authenticated. The
// engine checks it fresh for every message and drops messages while false.
type AuthGate interface {
	IsAuthenticated() bool
}

// Policy captures the deployment-level recipient behavior: a fixed default
// recipient, or no default at all, in which case senders must configure an
// address before anything is relayed.
type Policy struct {
	DefaultRecipient string
}

// Engine is the message dispatch and dialog engine.
type Engine struct {
	dialogs   *dialog.Store
	mailer    mailer.Mailer
	transport Transport
	gate      AuthGate
	policy    Policy
}

// NewEngine wires the dispatch engine.
func NewEngine(dialogs *dialog.Store, m mailer.Mailer, transport Transport, gate AuthGate, policy Policy) *Engine {
	return &Engine{
		dialogs:   dialogs,
		mailer:    m,
		transport: transport,
		gate:      gate,
		policy:    policy,
	}
}

// HandleMessage fully processes one inbound message: classification, dialog
// mutation, and relay. Any failure escaping the handlers is logged and
// answered with a single generic reply; dialog state is left unchanged so
// the sender is never stuck.
func (e *Engine) HandleMessage(ctx context.Context, msg *domain.Message) {
	if !e.gate.IsAuthenticated() {
		slog.Debug("Dropping message, session not authenticated", "chat_id", msg.ChatID)
		return
	}

	// Group conversations are out of scope by policy: no reply, no state.
	if msg.IsGroup {
		slog.Debug("Ignoring group message", "chat_id", msg.ChatID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling message", "chat_id", msg.ChatID, "panic", r)
			e.reply(ctx, msg, replyInternalError)
		}
	}()

	if err := e.dispatch(ctx, msg); err != nil {
		slog.Error("Failed to handle message", "chat_id", msg.ChatID, "error", err)
		e.reply(ctx, msg, replyInternalError)
	}
}

// dispatch routes the message to exactly one handler. Handlers send their
// own replies and return nil for all expected outcomes; an error here means
// something unexpected happened.
func (e *Engine) dispatch(ctx context.Context, msg *domain.Message) error {
	userID := msg.UserID()

	// An open dialog overrides everything else, including media.
	if e.dialogs.State(userID) != domain.DialogNormal {
		return e.handleDialog(ctx, msg, userID)
	}

	if strings.EqualFold(strings.TrimSpace(msg.Body), ConfigTrigger) {
		return e.startDialog(ctx, msg, userID)
	}

	switch msg.MediaKind() {
	case domain.MediaImage, domain.MediaPDF:
		return e.handleRelay(ctx, msg, userID)
	case domain.MediaOther:
		slog.Info("Rejecting unsupported attachment", "chat_id", msg.ChatID, "mime_type", msg.MimeType)
		e.reply(ctx, msg, replyUnsupportedMedia)
		return nil
	}

	if isHelpIntent(msg.Body) {
		e.reply(ctx, msg, replyHelp(e.policy.DefaultRecipient))
	}
	// Plain text without help intent is intentionally silent.
	return nil
}

// startDialog opens the configuration menu for a sender.
func (e *Engine) startDialog(ctx context.Context, msg *domain.Message, userID string) error {
	configured, ok := e.dialogs.Email(ctx, userID)
	current := configured
	isDefault := false
	if !ok {
		current = e.policy.DefaultRecipient
		isDefault = true
	}

	e.dialogs.SetState(userID, domain.DialogAwaitingChoice)
	slog.Info("Configuration dialog opened", "user_id", userID)
	e.reply(ctx, msg, replyMenu(current, isDefault))
	return nil
}

// handleDialog processes input while a configuration dialog is open. The
// exact options "1" and "2" are checked before the address syntax on
// purpose, regardless of sub-state: a menu choice typed while an email is
// expected falls through to option handling and is never misread as an
// address.
func (e *Engine) handleDialog(ctx context.Context, msg *domain.Message, userID string) error {
	text := strings.TrimSpace(msg.Body)

	switch text {
	case "1":
		e.dialogs.SetState(userID, domain.DialogAwaitingEmail)
		e.reply(ctx, msg, replyAskEmail)
		return nil
	case "2":
		e.dialogs.SetState(userID, domain.DialogNormal)
		e.reply(ctx, msg, replyExitConfig)
		return nil
	}

	if e.dialogs.State(userID) == domain.DialogAwaitingEmail {
		if !emailPattern.MatchString(text) {
			vErr := &ValidationError{Input: text}
			slog.Info("Rejected email input", "user_id", userID, "error", vErr)
			e.reply(ctx, msg, replyEmailInvalid)
			return nil
		}
		e.dialogs.SetEmail(ctx, userID, text)
		e.dialogs.SetState(userID, domain.DialogNormal)
		slog.Info("Configured email updated", "user_id", userID)
		e.reply(ctx, msg, replyEmailUpdated(text))
		return nil
	}

	// Unrecognized menu input: same menu again, state unchanged.
	e.reply(ctx, msg, replyInvalidOption)
	return nil
}

// handleRelay resolves the recipient, fetches the attachment, and sends it
// as an email. Every failure path produces exactly one reply and leaves
// the dialog state untouched.
func (e *Engine) handleRelay(ctx context.Context, msg *domain.Message, userID string) error {
	kind := msg.MediaKind()
	label := domain.KindLabel(kind)

	recipient, defaultUsed := e.resolveRecipient(ctx, userID)
	if recipient == "" {
		slog.Info("No recipient configured, relay skipped", "user_id", userID)
		e.reply(ctx, msg, replyNoRecipient)
		return nil
	}

	slog.Info("Relaying attachment",
		"chat", msg.ChatLabel(), "user_id", userID, "kind", label, "recipient", recipient)

	data, mimeType, err := e.transport.FetchMedia(ctx, msg.ID)
	if err != nil || len(data) == 0 {
		fErr := &MediaFetchError{Err: err}
		slog.Error("Attachment download failed", "message_id", msg.ID, "error", fErr)
		e.reply(ctx, msg, replyDownloadFailed)
		return nil
	}
	if mimeType == "" {
		mimeType = msg.MimeType
	}

	caption := strings.TrimSpace(msg.Body)
	job := domain.RelayJob{
		Recipient:   recipient,
		DefaultUsed: defaultUsed,
		Attachment: domain.Attachment{
			Filename:    domain.AttachmentFilename(kind),
			ContentType: mimeType,
			Data:        data,
		},
	}
	if caption != "" {
		job.Subject = caption
		job.Body = fmt.Sprintf("Você recebeu uma %s de %s no chat %s.\n\nTexto da mensagem: %s",
			label, userID, msg.ChatLabel(), caption)
	} else {
		job.Subject = fmt.Sprintf("Nova mensagem (%s) no chat %s", label, msg.ChatLabel())
		job.Body = fmt.Sprintf("Você recebeu uma %s de %s no chat %s.", label, userID, msg.ChatLabel())
	}

	messageID, err := e.mailer.Send(ctx, job)
	if err != nil {
		rErr := &RelayError{Err: err}
		slog.Error("Relay send failed", "recipient", recipient, "error", rErr)
		e.reply(ctx, msg, replyRelayFailed(err))
		return nil
	}

	slog.Info("Relay delivered", "recipient", recipient, "mail_message_id", messageID)
	e.reply(ctx, msg, replyRelayConfirmation(kind, recipient, defaultUsed, caption))
	return nil
}

// resolveRecipient picks the configured email, falling back to the
// deployment default. An empty result means explicit configuration is
// required and missing.
func (e *Engine) resolveRecipient(ctx context.Context, userID string) (string, bool) {
	if email, ok := e.dialogs.Email(ctx, userID); ok {
		return email, false
	}
	if e.policy.DefaultRecipient != "" {
		return e.policy.DefaultRecipient, true
	}
	return "", false
}

// reply sends an outbound reply, logging delivery failures. Reply failures
// never escalate; the message was already handled.
func (e *Engine) reply(ctx context.Context, msg *domain.Message, text string) {
	if err := e.transport.Reply(ctx, msg.ChatID, text); err != nil {
		slog.Error("Failed to send reply", "chat_id", msg.ChatID, "error", err)
	}
}

// isHelpIntent reports whether a plain-text body asks for usage help.
func isHelpIntent(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "help") ||
		strings.Contains(lower, "ajuda") ||
		strings.TrimSpace(body) == "?"
}
