// Package domain contains core domain types for the zapbridge relay.
package domain

import "strings"

// MediaKind classifies an inbound attachment by its MIME type.
type MediaKind int

const (
	// MediaNone means the message carries no attachment.
	MediaNone MediaKind = iota
	// MediaImage is any image/* attachment.
	MediaImage
	// MediaPDF is exactly application/pdf.
	MediaPDF
	// MediaOther is any other attachment type; never relayed.
	MediaOther
)

// Message is a single inbound chat message as delivered by the gateway.
// The attachment payload is not carried here; it is fetched lazily through
// the transport when a relay is actually attempted.
type Message struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	ChatName string `json:"chat_name,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
	IsGroup  bool   `json:"is_group"`
	Body     string `json:"body"`
	HasMedia bool   `json:"has_media"`
	MimeType string `json:"mime_type,omitempty"`
}

// UserID returns the identity the dialog state is keyed on: the individual
// sender when known, otherwise the chat itself.
func (m *Message) UserID() string {
	if m.SenderID != "" {
		return m.SenderID
	}
	return m.ChatID
}

// ChatLabel returns a human-readable name for the conversation, falling
// back to the chat ID when the gateway did not provide one.
func (m *Message) ChatLabel() string {
	if m.ChatName != "" {
		return m.ChatName
	}
	return m.ChatID
}

// MediaKind classifies the attachment. Relay is attempted only for
// MediaImage and MediaPDF.
func (m *Message) MediaKind() MediaKind {
	if !m.HasMedia {
		return MediaNone
	}
	if strings.HasPrefix(m.MimeType, "image/") {
		return MediaImage
	}
	if m.MimeType == "application/pdf" {
		return MediaPDF
	}
	return MediaOther
}

// Attachment is the payload of a relayed attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AttachmentFilename returns the fixed filename used for relayed
// attachments of the given kind.
func AttachmentFilename(kind MediaKind) string {
	if kind == MediaPDF {
		return "documento.pdf"
	}
	return "imagem.jpg"
}

// KindLabel returns the user-facing label for a media kind.
func KindLabel(kind MediaKind) string {
	if kind == MediaPDF {
		return "PDF"
	}
	return "IMAGEM"
}

// RelayJob is a fully resolved attachment-to-email relay request.
type RelayJob struct {
	Recipient  string
	Subject    string
	Body       string
	Attachment Attachment
	// DefaultUsed records whether Recipient came from the deployment
	// default rather than a per-conversation configuration.
	DefaultUsed bool
}
