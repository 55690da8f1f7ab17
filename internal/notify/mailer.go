package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/adityaks/nftpay/internal/domain"
)

// SMTPConfig holds outbound mail parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer sends payment receipts to buyers over SMTP. Delivery is
// best-effort from the reconciler's point of view: failures are logged by
// the caller and never affect the committed payment state.
type Mailer struct {
	cfg    SMTPConfig
	client *mail.Client
	logger *slog.Logger
}

// NewMailer creates a Mailer for the given SMTP endpoint.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mailer: create client: %w", err)
	}
	return &Mailer{
		cfg:    cfg,
		client: client,
		logger: logger.With(slog.String("component", "mailer")),
	}, nil
}

// SendReceipt emails a plain-text payment receipt for a completed
// transaction.
func (m *Mailer) SendReceipt(ctx context.Context, to, name string, txn domain.Transaction) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mailer: from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: to address: %w", err)
	}

	msg.Subject(fmt.Sprintf("Payment received for order %s", txn.ID))
	msg.SetBodyString(mail.TypeTextPlain, receiptBody(name, txn))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send receipt for %s: %w", txn.ID, err)
	}

	m.logger.Info("receipt sent",
		slog.String("transaction_id", txn.ID),
		slog.String("to", to),
	)
	return nil
}

func receiptBody(name string, txn domain.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We have received your payment of %s %s.\n\n", txn.Currency, txn.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Order:     %s\n", txn.ID)
	if txn.TxnRef != "" {
		fmt.Fprintf(&b, "Reference: %s\n", txn.TxnRef)
	}
	fmt.Fprintf(&b, "Status:    %s\n\n", txn.Status)
	b.WriteString("Your NFT has been transferred to your account.\n")
	return b.String()
}
