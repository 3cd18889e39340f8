package mailbox

import "github.com/emersion/go-sasl"

// xoauth2Client implements the SASL XOAUTH2 mechanism used by Gmail to
// authenticate with an OAuth2 bearer token instead of a password.
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client creates a sasl.Client for the XOAUTH2 mechanism
func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

// Start returns the mechanism name and the initial response in the form
// "user=<user>\x01auth=Bearer <token>\x01\x01".
func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles a server challenge. XOAUTH2 only challenges on failure, with
// a base64 JSON error blob; replying with an empty response makes the server
// finish with a tagged NO so the failure surfaces as a normal auth error.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
