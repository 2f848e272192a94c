package models

import (
	"fmt"
	"strings"
)

// RecipientType identifies the header a recipient is listed under
type RecipientType string

const (
	RecipientTo  RecipientType = "TO"
	RecipientCc  RecipientType = "CC"
	RecipientBcc RecipientType = "BCC"
)

// RecipientTypes lists every recipient type in header order
var RecipientTypes = []RecipientType{RecipientTo, RecipientCc, RecipientBcc}

// ParseRecipientType converts a case-insensitive name into a RecipientType
func ParseRecipientType(s string) (RecipientType, error) {
	t := RecipientType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case RecipientTo, RecipientCc, RecipientBcc:
		return t, nil
	}
	return "", fmt.Errorf("unknown recipient type %q", s)
}

// Recipient is a single addressee of an outbound message
type Recipient struct {
	Address string        `json:"address"`
	Type    RecipientType `json:"type"`
}

// Message is an outbound message as composed by the client
type Message struct {
	Subject    string      `json:"subject"`
	Content    string      `json:"content"`
	Recipients []Recipient `json:"recipients"`
}

// RecipientAddresses returns the addresses of the given type, in order
func (m *Message) RecipientAddresses(t RecipientType) []string {
	var addresses []string
	for _, r := range m.Recipients {
		if r.Type == t {
			addresses = append(addresses, r.Address)
		}
	}
	return addresses
}
