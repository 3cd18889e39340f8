package store

import (
	"strings"

	"github.com/haruo/melnotify/pkg/models"
)

// IMAP hosts for providers whose token endpoint we support. OAuth consent
// goes through Google, so in practice this resolves to Gmail, but aliases of
// the same backend are listed so an address like @googlemail.com still works.
var knownMailServers = map[string]string{
	"gmail.com":      "imap.gmail.com",
	"googlemail.com": "imap.gmail.com",
}

// defaultMailServer picks the IMAP host and port for a mailbox address.
func defaultMailServer(email string) (string, int) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "imap.gmail.com", models.DefaultIMAPPort
	}

	domain := strings.ToLower(parts[1])
	if host, ok := knownMailServers[domain]; ok {
		return host, models.DefaultIMAPPort
	}
	// Workspace domains are hosted by Gmail as well once Google consent
	// succeeded for them.
	return "imap.gmail.com", models.DefaultIMAPPort
}
