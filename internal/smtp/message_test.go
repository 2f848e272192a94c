package smtp

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"webmail-api/internal/models"
)

func TestSenderAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user string
		host string
		want string
	}{
		{name: "user is an address", user: "a@b.com", host: "mail.example.com", want: "a@b.com"},
		{name: "bare user name", user: "alice", host: "mail.example.com", want: "alice@mail.example.com"},
		{name: "address on another domain", user: "bob@corp.example", host: "smtp.example.com", want: "bob@corp.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SenderAddress(&models.Credentials{User: tt.user, ServerHost: tt.host})
			if got != tt.want {
				t.Errorf("SenderAddress(%q, %q): got %q, want %q", tt.user, tt.host, got, tt.want)
			}
		})
	}
}

func TestBuildMessage_RecipientGroups(t *testing.T) {
	t.Parallel()

	creds := &models.Credentials{ServerHost: "mail.example.com", User: "alice"}
	msg := &models.Message{
		Subject: "Hello",
		Content: "<p>Hi</p>",
		Recipients: []models.Recipient{
			{Address: "bcc1@example.com", Type: models.RecipientBcc},
			{Address: "to@example.com", Type: models.RecipientTo},
			{Address: "bcc2@example.com", Type: models.RecipientBcc},
		},
	}

	env, err := BuildMessage(creds, msg, time.Now())
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	if env.From != "alice@mail.example.com" {
		t.Errorf("From: got %q, want %q", env.From, "alice@mail.example.com")
	}
	if len(env.To) != 1 || env.To[0] != "to@example.com" {
		t.Errorf("To: got %v, want [to@example.com]", env.To)
	}
	if len(env.Cc) != 0 {
		t.Errorf("Cc: got %v, want none", env.Cc)
	}
	if len(env.Bcc) != 2 || env.Bcc[0] != "bcc1@example.com" || env.Bcc[1] != "bcc2@example.com" {
		t.Errorf("Bcc: got %v, want [bcc1@example.com bcc2@example.com]", env.Bcc)
	}

	want := "to@example.com,bcc1@example.com,bcc2@example.com"
	if got := strings.Join(env.Recipients(), ","); got != want {
		t.Errorf("Recipients(): got %q, want %q", got, want)
	}

	to, err := env.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "to@example.com" {
		t.Errorf("To header: got %v (err %v)", to, err)
	}
	cc, err := env.Header.AddressList("Cc")
	if err != nil || len(cc) != 0 {
		t.Errorf("Cc header: got %v (err %v), want none", cc, err)
	}
	if env.Header.Has("Bcc") {
		t.Error("Bcc must not be written to the header")
	}
}

func TestBuildMessage_Content(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	creds := &models.Credentials{ServerHost: "mail.example.com", User: "a@b.com"}
	msg := &models.Message{
		Subject: "Función ñ",
		Content: "<blockquote class='blockquote'>quoted</blockquote>",
		Recipients: []models.Recipient{
			{Address: "to@example.com", Type: models.RecipientTo},
			{Address: "cc@example.com", Type: models.RecipientCc},
		},
	}

	env, err := BuildMessage(creds, msg, now)
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	var buf bytes.Buffer
	if _, err := env.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), env.Raw) {
		t.Error("WriteTo output differs from Raw")
	}

	mr, err := mail.CreateReader(bytes.NewReader(env.Raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	subject, err := mr.Header.Subject()
	if err != nil || subject != "Función ñ" {
		t.Errorf("Subject: got %q (err %v)", subject, err)
	}
	date, err := mr.Header.Date()
	if err != nil || !date.Equal(now) {
		t.Errorf("Date: got %v (err %v), want %v", date, err, now)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "a@b.com" {
		t.Errorf("From header: got %v (err %v)", from, err)
	}
	if id, err := mr.Header.MessageID(); err != nil || id == "" {
		t.Errorf("Message-ID: got %q (err %v)", id, err)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	h, ok := part.Header.(*mail.InlineHeader)
	if !ok {
		t.Fatalf("part header: got %T, want *mail.InlineHeader", part.Header)
	}
	ct, params, err := h.ContentType()
	if err != nil || ct != "text/html" || params["charset"] != "utf-8" {
		t.Errorf("Content-Type: got %q %v (err %v)", ct, params, err)
	}

	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("failed to read part: %v", err)
	}
	if string(body) != HTMLDocument(msg.Content) {
		t.Errorf("body: got %q, want %q", body, HTMLDocument(msg.Content))
	}

	if _, err := mr.NextPart(); err != io.EOF {
		t.Errorf("expected a single part, NextPart returned %v", err)
	}
}

func TestHTMLDocument(t *testing.T) {
	t.Parallel()

	doc := HTMLDocument("<p>hi</p>")

	if !strings.HasPrefix(doc, "<html><head><style>") {
		t.Errorf("document does not start with the stylesheet: %q", doc)
	}
	if !strings.Contains(doc, "<div id='scoped'><style type='text/css' scoped>") {
		t.Error("scoped wrapper is missing")
	}
	if !strings.Contains(doc, "<p>hi</p></div></body></html>") {
		t.Error("content is not placed inside the wrapper")
	}
	if strings.Count(doc, "pre.code-block:last-child") != 2 {
		t.Error("stylesheet should appear in head and in the wrapper")
	}
}
