package models

// Credentials holds the mail account a webmail session acts on.
//
// A record is either in plaintext form (ServerHost, User and Password set)
// or in encrypted form (Salt and Encrypted set). The encrypted form is what
// the client keeps between requests.
type Credentials struct {
	ServerHost string `json:"serverHost,omitempty"`
	User       string `json:"user,omitempty"`
	Password   string `json:"password,omitempty"`
	ImapPort   int    `json:"imapPort,omitempty"`
	Salt       string `json:"salt,omitempty"`
	Encrypted  string `json:"encrypted,omitempty"`
}

// IsEncrypted returns true if the record carries an encrypted payload
func (c *Credentials) IsEncrypted() bool {
	return c.Encrypted != "" || c.Salt != ""
}
