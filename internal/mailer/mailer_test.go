package mailer

import (
	"bytes"
	"io"
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"

	"github.com/zapbridge/zapbridge/internal/domain"
)

func testJob() domain.RelayJob {
	return domain.RelayJob{
		Recipient: "inbox@example.com",
		Subject:   "Nota fiscal",
		Body:      "Você recebeu uma IMAGEM de user-1 no chat Maria.",
		Attachment: domain.Attachment{
			Filename:    "imagem.jpg",
			ContentType: "image/jpeg",
			Data:        []byte("jpeg-bytes"),
		},
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	from := &netmail.Address{Name: "Bot WhatsApp", Address: "bot@localhost"}

	msg, err := BuildMessage(testJob(), from, "abc-123@localhost")
	if err != nil {
		t.Fatalf("BuildMessage failed: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Failed to parse built message: %v", err)
	}

	subject, err := mr.Header.Subject()
	if err != nil || subject != "Nota fiscal" {
		t.Errorf("Expected subject Nota fiscal, got %q (err=%v)", subject, err)
	}

	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "inbox@example.com" {
		t.Errorf("Expected To inbox@example.com, got %v (err=%v)", to, err)
	}

	msgID, err := mr.Header.MessageID()
	if err != nil || msgID != "abc-123@localhost" {
		t.Errorf("Expected Message-Id abc-123@localhost, got %q (err=%v)", msgID, err)
	}
}

func TestBuildMessageParts(t *testing.T) {
	from := &netmail.Address{Address: "bot@localhost"}

	msg, err := BuildMessage(testJob(), from, "abc-123@localhost")
	if err != nil {
		t.Fatalf("BuildMessage failed: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Failed to parse built message: %v", err)
	}

	var gotBody string
	var gotFilename string
	var gotAttachment []byte

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			body, err := io.ReadAll(part.Body)
			if err != nil {
				t.Fatalf("Failed to read inline part: %v", err)
			}
			gotBody = string(body)
		case *mail.AttachmentHeader:
			gotFilename, _ = h.Filename()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				t.Fatalf("Failed to read attachment: %v", err)
			}
			gotAttachment = data
		}
	}

	if !strings.Contains(gotBody, "Você recebeu uma IMAGEM") {
		t.Errorf("Expected text body, got %q", gotBody)
	}
	if gotFilename != "imagem.jpg" {
		t.Errorf("Expected attachment filename imagem.jpg, got %q", gotFilename)
	}
	if string(gotAttachment) != "jpeg-bytes" {
		t.Errorf("Expected attachment payload preserved, got %q", gotAttachment)
	}
}

func TestBuildMessageWithoutAttachment(t *testing.T) {
	job := testJob()
	job.Attachment = domain.Attachment{}
	from := &netmail.Address{Address: "bot@localhost"}

	msg, err := BuildMessage(job, from, "abc-123@localhost")
	if err != nil {
		t.Fatalf("BuildMessage failed: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Failed to parse built message: %v", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		if _, ok := part.Header.(*mail.AttachmentHeader); ok {
			t.Error("Expected no attachment part for an empty attachment")
		}
	}
}
