package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Summary is the sender/subject pair shown for one message in a notification.
type Summary struct {
	From    string
	Subject string
}

// Client is one connection to an IMAP server. It lives for a single poll:
// dial, authenticate, search, fetch, mark seen, logout.
type Client struct {
	conn   *client.Client
	logger *slog.Logger
}

// Dial opens a TLS connection to an IMAP server at addr (host:port)
func Dial(ctx context.Context, addr string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}
	imapClient.Timeout = timeout

	return &Client{conn: imapClient, logger: logger.With("server", addr)}, nil
}

// Dialer returns a DialFunc with the timeout and logger baked in
func Dialer(timeout time.Duration, logger *slog.Logger) DialFunc {
	return func(ctx context.Context, addr string) (Session, error) {
		return Dial(ctx, addr, timeout, logger)
	}
}

// Authenticate logs in with the XOAUTH2 mechanism
func (c *Client) Authenticate(email, accessToken string) error {
	if err := c.conn.Authenticate(NewXOAuth2Client(email, accessToken)); err != nil {
		return fmt.Errorf("xoauth2 authentication failed: %w", err)
	}
	return nil
}

// SearchUnseen selects INBOX and returns the sequence numbers of all
// messages without the \Seen flag.
func (c *Client) SearchUnseen() ([]uint32, error) {
	if _, err := c.conn.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.conn.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("unseen search failed: %w", err)
	}
	return seqNums, nil
}

// FetchSummaries fetches the envelopes of the given messages and returns
// their decoded sender and subject.
func (c *Client) FetchSummaries(seqNums []uint32) ([]Summary, error) {
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.conn.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var summaries []Summary
	for msg := range messages {
		if msg.Envelope == nil {
			c.logger.Warn("message without envelope", "seq", msg.SeqNum)
			continue
		}
		summaries = append(summaries, Summary{
			From:    formatFrom(msg.Envelope),
			Subject: decodeHeader(msg.Envelope.Subject),
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return summaries, nil
}

// MarkSeen adds the \Seen flag to every given message
func (c *Client) MarkSeen(seqNums []uint32) error {
	if len(seqNums) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.conn.Store(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return nil
}

// Logout closes the connection
func (c *Client) Logout() error {
	return c.conn.Logout()
}

// formatFrom renders the first sender address as "Name <addr>" or just the
// bare address when no display name is present.
func formatFrom(env *imap.Envelope) string {
	if len(env.From) == 0 {
		return "不明"
	}

	addr := env.From[0]
	address := addr.Address()
	name := decodeHeader(addr.PersonalName)
	if name == "" {
		return address
	}
	return name + " <" + address + ">"
}
