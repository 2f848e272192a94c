package database

import (
	"database/sql"
	"fmt"

	"webmail-api/internal/models"
)

// SentRepository handles sent message log operations
type SentRepository struct {
	db *DB
}

// NewSentRepository creates a new sent message repository
func NewSentRepository(db *DB) *SentRepository {
	return &SentRepository{db: db}
}

// Create inserts a sent message entry. A zero SentAt is stored as the
// current time.
func (r *SentRepository) Create(msg *models.SentMessage) error {
	recipientsJSON, err := msg.RecipientsJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	status := msg.Status
	if status == "" {
		status = models.StatusSent
	}

	var result sql.Result
	if msg.SentAt.IsZero() {
		result, err = r.db.Conn().Exec(`
			INSERT INTO sent_messages (sender, recipients, subject, size_bytes, server_host, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`, msg.Sender, recipientsJSON, msg.Subject, msg.SizeBytes, msg.ServerHost, status)
	} else {
		result, err = r.db.Conn().Exec(`
			INSERT INTO sent_messages (sender, recipients, subject, size_bytes, server_host, status, sent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.Sender, recipientsJSON, msg.Subject, msg.SizeBytes, msg.ServerHost, status, msg.SentAt.UTC())
	}
	if err != nil {
		return fmt.Errorf("failed to insert sent message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	msg.Status = status
	return nil
}

// ListBySender returns the most recent entries of sender, newest first.
// A limit of zero or less returns every entry.
func (r *SentRepository) ListBySender(sender string, limit int) ([]*models.SentMessage, error) {
	query := `
		SELECT id, sender, recipients, subject, size_bytes, server_host, status, sent_at
		FROM sent_messages
		WHERE sender = ?
		ORDER BY sent_at DESC, id DESC
	`
	args := []any{sender}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent messages: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// Count returns the total number of logged messages
func (r *SentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM sent_messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}
	return count, nil
}

// DeleteBySender removes every entry of sender and returns how many were removed
func (r *SentRepository) DeleteBySender(sender string) (int64, error) {
	result, err := r.db.Conn().Exec(`DELETE FROM sent_messages WHERE sender = ?`, sender)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent messages: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// scanRows scans multiple sent message rows into a slice
func (r *SentRepository) scanRows(rows *sql.Rows) ([]*models.SentMessage, error) {
	var messages []*models.SentMessage

	for rows.Next() {
		msg := &models.SentMessage{}
		var recipientsJSON string

		err := rows.Scan(
			&msg.ID,
			&msg.Sender,
			&recipientsJSON,
			&msg.Subject,
			&msg.SizeBytes,
			&msg.ServerHost,
			&msg.Status,
			&msg.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sent message row: %w", err)
		}

		if err := msg.ParseRecipientsJSON(recipientsJSON); err != nil {
			return nil, fmt.Errorf("failed to parse recipients: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sent message rows: %w", err)
	}

	return messages, nil
}
