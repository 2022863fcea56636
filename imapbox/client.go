// Package imapbox implements mail.Provider over IMAP for accounts that are
// not on Gmail.
package imapbox

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/mail"
)

// Options describes the account.
type Options struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
	// Mailboxes maps lowercased labels to mailbox names. Labels without an
	// entry are used as the mailbox name.
	Mailboxes map[string]string
}

// Client holds one logged-in IMAP connection. Calls are serialized.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	conn     *imapclient.Client
	selected string
}

var _ mail.Provider = (*Client)(nil)

// Dial connects and logs in. A rejected login is reported as
// mail.Unauthorized.
func Dial(ctx context.Context, opts Options, log zerolog.Logger) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := opts.Host + ":" + opts.Port

	var conn *imapclient.Client
	var err error
	if opts.TLS {
		conn, err = imapclient.DialTLS(addr, nil)
	} else {
		conn, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := conn.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = conn.Logout().Wait()
		return nil, mail.Unauthorized(fmt.Errorf("login failed for %s: %w", opts.Username, err))
	}

	log = log.With().Str("component", "imap").Str("addr", addr).Logger()
	log.Info().Msg("logged in")
	return &Client{opts: opts, log: log, conn: conn}, nil
}

// Close logs out.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Logout().Wait()
	c.conn = nil
	return err
}

// ListMessages returns the newest maxResults UIDs of the label's mailbox as
// "mailbox:uid" ids.
func (c *Client) ListMessages(ctx context.Context, label string, maxResults int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mailbox := mailboxFor(c.opts.Mailboxes, label)
	if err := c.selectMailbox(mailbox); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagDeleted}}
	searchData, err := c.conn.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", mailbox, err)
	}
	uids := newestFirst(searchData.AllUIDs(), maxResults)

	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = formatID(mailbox, uid)
	}
	c.log.Debug().Str("mailbox", mailbox).Int("count", len(ids)).Msg("listed messages")
	return ids, nil
}

// FetchSnippet fetches the message body and derives a short preview from
// its text part.
func (c *Client) FetchSnippet(ctx context.Context, id string) (string, error) {
	mailbox, uid, err := parseID(id)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.selectMailbox(mailbox); err != nil {
		return "", err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	fetchCmd := c.conn.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return "", fmt.Errorf("message UID %d not found in %s", uid, mailbox)
	}
	buf, err := msg.Collect()
	if err != nil {
		return "", fmt.Errorf("collecting message data: %w", err)
	}
	raw := buf.FindBodySection(bodySection)
	if err := fetchCmd.Close(); err != nil {
		return "", fmt.Errorf("fetching message %s: %w", id, err)
	}
	return Snippet(raw), nil
}

func (c *Client) selectMailbox(mailbox string) error {
	if c.conn == nil {
		return mail.Unauthorized(fmt.Errorf("connection closed"))
	}
	if c.selected == mailbox {
		return nil
	}
	if _, err := c.conn.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	c.selected = mailbox
	return nil
}

func mailboxFor(mailboxes map[string]string, label string) string {
	if name, ok := mailboxes[strings.ToLower(label)]; ok && name != "" {
		return name
	}
	return label
}

// newestFirst keeps the highest n UIDs, highest first.
func newestFirst(uids []imap.UID, n int64) []imap.UID {
	sorted := slices.Clone(uids)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	if int64(len(sorted)) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func formatID(mailbox string, uid imap.UID) string {
	return mailbox + ":" + strconv.FormatUint(uint64(uid), 10)
}

// parseID splits on the last colon since mailbox names may contain one.
func parseID(id string) (string, imap.UID, error) {
	i := strings.LastIndex(id, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed message id %q", id)
	}
	uid, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil || uid == 0 {
		return "", 0, fmt.Errorf("malformed message id %q", id)
	}
	return id[:i], imap.UID(uid), nil
}
