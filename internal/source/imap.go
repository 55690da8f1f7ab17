package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/adityaks/nftpay/internal/domain"
)

// alertPattern is the coarse pre-filter for bank credit alerts. Messages
// that mention none of these never describe an incoming UPI payment and are
// dropped before parsing.
var alertPattern = regexp.MustCompile(`(?i)UPI|credited|received|payment`)

// IMAPConfig holds mailbox connection parameters.
type IMAPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Folder   string
	// Timeout bounds dial, login, and per-command reads. It must be kept
	// shorter than the scheduler interval so a hung mailbox cannot starve
	// subsequent ticks.
	Timeout time.Duration
}

// IMAPSource scans a remote mailbox over IMAP+TLS for recent bank
// credit-alert messages. Each Fetch opens a fresh session; bank alert
// volumes are far too low to justify a persistent connection.
type IMAPSource struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

// NewIMAPSource creates an IMAPSource for the given mailbox.
func NewIMAPSource(cfg IMAPConfig, logger *slog.Logger) *IMAPSource {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAPSource{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "imap_source")),
	}
}

// Fetch connects to the mailbox, searches for messages received within the
// lookback window, and returns the bodies of those that look like credit
// alerts. Connection and authentication failures are reported as
// domain.ErrSourceUnavailable so the scheduler skips the tick instead of
// treating it as fatal.
func (s *IMAPSource) Fetch(ctx context.Context, lookback time.Duration) ([]domain.RawSignal, error) {
	since := time.Now().UTC().Add(-lookback)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	c, err := client.DialWithDialerTLS(dialer, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrSourceUnavailable, addr, err)
	}
	c.Timeout = s.cfg.Timeout
	defer func() { _ = c.Logout() }()

	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("%w: login %s: %v", domain.ErrSourceUnavailable, s.cfg.User, err)
	}

	if _, err := c.Select(s.cfg.Folder, true); err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", domain.ErrSourceUnavailable, s.cfg.Folder, err)
	}

	// IMAP SINCE has day granularity; the exact window is re-checked below
	// against each message's internal date.
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrSourceUnavailable, err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var signals []domain.RawSignal
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, ok := s.toRawSignal(msg, since)
		if ok {
			signals = append(signals, sig)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch bodies: %v", domain.ErrSourceUnavailable, err)
	}

	s.logger.Debug("mailbox scan complete",
		slog.Int("searched", len(seqNums)),
		slog.Int("candidates", len(signals)),
	)
	return signals, nil
}

// toRawSignal converts one fetched message into a RawSignal, applying the
// exact time window and the credit-alert pre-filter.
func (s *IMAPSource) toRawSignal(msg *imap.Message, since time.Time) (domain.RawSignal, bool) {
	if msg.InternalDate.Before(since) {
		return domain.RawSignal{}, false
	}

	var subject, messageID string
	if msg.Envelope != nil {
		subject = msg.Envelope.Subject
		messageID = msg.Envelope.MessageId
	}
	if messageID == "" {
		messageID = fmt.Sprintf("uid-%d@%s", msg.SeqNum, s.cfg.Folder)
	}

	section := &imap.BodySectionName{Peek: true}
	literal := msg.GetBody(section)
	if literal == nil {
		return domain.RawSignal{}, false
	}

	body, err := extractText(literal)
	if err != nil {
		s.logger.Debug("unreadable message body, skipping",
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
		return domain.RawSignal{}, false
	}

	text := subject + "\n" + body
	if !alertPattern.MatchString(text) {
		return domain.RawSignal{}, false
	}

	return domain.RawSignal{
		ID:         messageID,
		ReceivedAt: msg.InternalDate.UTC(),
		Body:       text,
	}, true
}

// extractText collects the text/plain and text/html inline parts of a MIME
// message into a single string.
func extractText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}

	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever parts decoded cleanly.
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "text/plain" && ct != "text/html" {
			continue
		}
		data, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts")
	}
	return strings.Join(parts, "\n"), nil
}

// Name returns the source identifier.
func (s *IMAPSource) Name() string { return "mailbox_scan" }

var _ Source = (*IMAPSource)(nil)
