// Package credentials protects the mail account credentials handed to
// webmail clients.
//
// Plaintext credentials are serialized to JSON and sealed with AES-256-GCM
// under a key derived from the server-wide encryption password and a random
// per-record salt. The client stores the resulting hex strings and returns
// them with every request.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"webmail-api/internal/models"
)

const (
	saltBytes        = 8
	nonceBytes       = 16
	keyBytes         = 32
	pbkdf2Iterations = 1024
)

const keyMismatchMessage = "key or salt is not compatible with encrypted credentials " +
	"(server has changed the password or user tampered with credentials)"

// Guard checks and seals credentials. It holds no mutable state and may be
// shared between requests.
type Guard struct {
	password     []byte
	trustedHosts map[string]struct{}
	random       io.Reader
}

// NewGuard creates a Guard. An empty trustedHosts list allows any server host.
func NewGuard(password string, trustedHosts []string) *Guard {
	hosts := make(map[string]struct{}, len(trustedHosts))
	for _, h := range trustedHosts {
		if h == "" {
			continue
		}
		hosts[h] = struct{}{}
	}
	return &Guard{
		password:     []byte(password),
		trustedHosts: hosts,
		random:       rand.Reader,
	}
}

// CheckHost fails if an allow-list is configured and the credentials'
// server host is not on it.
func (g *Guard) CheckHost(c *models.Credentials) error {
	if len(g.trustedHosts) == 0 {
		return nil
	}
	if _, ok := g.trustedHosts[c.ServerHost]; !ok {
		return NewAuthenticationError(ReasonUntrustedHost, "host is not allowed", nil)
	}
	return nil
}

// Encrypt seals the plaintext fields of c under a fresh salt and returns a
// record holding only Salt and Encrypted.
func (g *Guard) Encrypt(c *models.Credentials) (*models.Credentials, error) {
	salt := make([]byte, saltBytes)
	if _, err := io.ReadFull(g.random, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	plain := models.Credentials{
		ServerHost: c.ServerHost,
		User:       c.User,
		Password:   c.Password,
		ImapPort:   c.ImapPort,
	}
	payload, err := json.Marshal(&plain)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	aead, err := g.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceBytes)
	if _, err := io.ReadFull(g.random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Nonce is prepended to ciphertext: [nonce][ciphertext+tag]
	sealed := aead.Seal(nonce, nonce, payload, nil)

	return &models.Credentials{
		Salt:      hex.EncodeToString(salt),
		Encrypted: hex.EncodeToString(sealed),
	}, nil
}

// Decrypt opens a record produced by Encrypt and returns its plaintext form.
func (g *Guard) Decrypt(encrypted, salt string) (*models.Credentials, error) {
	if encrypted == "" || salt == "" {
		return nil, NewAuthenticationError(ReasonMissingCredentials, "missing encrypted credentials", nil)
	}

	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return nil, NewAuthenticationError(ReasonKeyMismatch, keyMismatchMessage, fmt.Errorf("salt: %w", err))
	}
	sealed, err := hex.DecodeString(encrypted)
	if err != nil {
		return nil, NewAuthenticationError(ReasonKeyMismatch, keyMismatchMessage, fmt.Errorf("ciphertext: %w", err))
	}
	if len(sealed) < nonceBytes {
		return nil, NewAuthenticationError(ReasonKeyMismatch, keyMismatchMessage, fmt.Errorf("ciphertext too short"))
	}

	aead, err := g.aead(rawSalt)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:nonceBytes], sealed[nonceBytes:]
	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewAuthenticationError(ReasonKeyMismatch, keyMismatchMessage, err)
	}

	var c models.Credentials
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &c, nil
}

// aead derives the record key from the server password and salt
func (g *Guard) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(g.password, salt, pbkdf2Iterations, keyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
