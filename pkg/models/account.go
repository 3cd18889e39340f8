package models

import (
	"fmt"
	"time"
)

// DefaultIMAPPort is the standard IMAPS port used when an account has none set.
const DefaultIMAPPort = 993

// UserAccount links a chat identity to a mailbox account. A record is created
// on first contact with only ChatUserID and LinkState; the OAuth callback
// fills in the mailbox fields once consent completes.
type UserAccount struct {
	ChatUserID   string `json:"chat_user_id"`
	LinkState    string `json:"link_state"`
	EmailAddress string `json:"email_address"`
	MailServer   string `json:"mail_server"`
	MailPort     int    `json:"mail_port"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// TokenExpiry is advisory only. Tokens are refreshed in reaction to an
	// authentication failure, not ahead of expiry.
	TokenExpiry time.Time `json:"token_expiry"`
}

// Ready reports whether the account has everything needed to poll its mailbox.
func (a *UserAccount) Ready() bool {
	return a.ChatUserID != "" &&
		a.EmailAddress != "" &&
		a.AccessToken != "" &&
		a.RefreshToken != ""
}

// Addr returns the mail server address in host:port form.
func (a *UserAccount) Addr() string {
	port := a.MailPort
	if port == 0 {
		port = DefaultIMAPPort
	}
	return fmt.Sprintf("%s:%d", a.MailServer, port)
}
