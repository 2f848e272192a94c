package smtp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"webmail-api/internal/models"
)

// styles is repeated inside the scoped wrapper for readers that drop <head>
const styles = "body {font-family: 'Roboto', 'Calibri',  sans-serif; font-size: 1rem; color: #333}" +
	"h1.h1 {margin: 6px 0 16px 0; font-size: 3rem; font-weight: normal}" +
	"h2.h2 {margin: 6px 0 12px 0; font-size: 2.5rem; font-weight: normal}" +
	"h3.h3 {margin: 6px 0 8px 0; font-size: 1.5rem; font-weight: bold}" +
	"blockquote.blockquote {border-left: 5px solid #ebebeb; font-style: italic; margin: 0; padding: 0 32px}" +
	"pre.code-block {background-color: #ebebeb; margin: 0; padding: 0 8px}" +
	"pre.code-block:first-child {padding-top: 8px}" +
	"pre.code-block:last-child {padding-bottom: 8px}"

// Envelope is a fully built outbound message together with its SMTP
// envelope addresses.
type Envelope struct {
	From   string
	To     []string
	Cc     []string
	Bcc    []string
	Header mail.Header
	Raw    []byte
}

// Recipients returns every envelope recipient, To first, then Cc and Bcc
func (e *Envelope) Recipients() []string {
	all := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	all = append(all, e.To...)
	all = append(all, e.Cc...)
	all = append(all, e.Bcc...)
	return all
}

// WriteTo writes the message as it goes on the wire
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.Raw)
	return int64(n), err
}

// SenderAddress returns the user name if it is already an address, or
// user@serverHost otherwise.
func SenderAddress(c *models.Credentials) string {
	if strings.Contains(c.User, "@") {
		return c.User
	}
	return fmt.Sprintf("%s@%s", c.User, c.ServerHost)
}

// HTMLDocument wraps content in the styled document sent to recipients
func HTMLDocument(content string) string {
	return fmt.Sprintf("<html><head><style>%[1]s</style></head><body><div id='scoped'>"+
		"<style type='text/css' scoped>%[1]s</style>%[2]s</div></body></html>", styles, content)
}

// BuildMessage assembles the MIME message for m as sent by c
func BuildMessage(c *models.Credentials, m *models.Message, now time.Time) (*Envelope, error) {
	env := &Envelope{
		From: SenderAddress(c),
		To:   m.RecipientAddresses(models.RecipientTo),
		Cc:   m.RecipientAddresses(models.RecipientCc),
		Bcc:  m.RecipientAddresses(models.RecipientBcc),
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: env.From}})
	if len(env.To) > 0 {
		h.SetAddressList("To", toAddressList(env.To))
	}
	if len(env.Cc) > 0 {
		h.SetAddressList("Cc", toAddressList(env.Cc))
	}
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	env.Header = h.Copy()

	var buf bytes.Buffer
	if err := writeBody(&buf, h, m.Content); err != nil {
		return nil, err
	}
	env.Raw = buf.Bytes()

	return env, nil
}

// writeBody writes a multipart message holding a single HTML part
func writeBody(w io.Writer, h mail.Header, content string) error {
	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("failed to create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create html part: %w", err)
	}
	if _, err := io.WriteString(pw, HTMLDocument(content)); err != nil {
		return fmt.Errorf("failed to write html part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close html part: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("failed to close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}
	return nil
}

func toAddressList(addresses []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addresses))
	for _, a := range addresses {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}
