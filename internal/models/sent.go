package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Delivery statuses recorded in the sent log
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// SentMessage is the log entry kept for every dispatched message
type SentMessage struct {
	ID         int64     `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	SizeBytes  int64     `json:"size_bytes"`
	ServerHost string    `json:"server_host"`
	Status     string    `json:"status"`
	SentAt     time.Time `json:"sent_at"`
}

// RecipientsJSON returns the recipients as a JSON string for database storage
func (s *SentMessage) RecipientsJSON() (string, error) {
	data, err := json.Marshal(s.Recipients)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseRecipientsJSON parses a JSON string into the recipients slice
func (s *SentMessage) ParseRecipientsJSON(data string) error {
	return json.Unmarshal([]byte(data), &s.Recipients)
}

// RecipientsDisplay returns a comma-separated string of recipients for display
func (s *SentMessage) RecipientsDisplay() string {
	return strings.Join(s.Recipients, ", ")
}
