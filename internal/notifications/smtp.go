package notifications

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/analogfan/marketplace-backend/pkg/config"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
)

// SMTPDispatcher sends plain transactional mail through a configured relay.
// Label notifications go to the operator mailbox (the shop is single-seller),
// matching the fulfillment workflow this backend supports.
type SMTPDispatcher struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPDispatcher builds a dispatcher from mail configuration.
func NewSMTPDispatcher(cfg config.MailConfig) (*SMTPDispatcher, error) {
	if !cfg.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "smtp host not configured")
	}
	return &SMTPDispatcher{cfg: cfg, send: smtp.SendMail}, nil
}

func (d *SMTPDispatcher) SendOrderConfirmation(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Thank you for your order %s.\r\n\r\n", order.OrderNumber)
	for _, item := range items {
		fmt.Fprintf(&body, "- item %d x%d at %s EUR\r\n", item.ItemID, item.Quantity, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&body, "\r\nSubtotal: %s EUR\r\n", order.Subtotal.StringFixed(2))
	fmt.Fprintf(&body, "Shipping: %s EUR\r\n", order.ShippingCost.StringFixed(2))
	fmt.Fprintf(&body, "Total:    %s EUR\r\n", order.TotalAmount.StringFixed(2))

	msg := d.plainMessage(order.Email, fmt.Sprintf("Order confirmation %s", order.OrderNumber), body.String())
	return d.deliver(ctx, order.Email, msg)
}

func (d *SMTPDispatcher) SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment, labelPDF []byte) error {
	if order == nil || shipment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and shipment required")
	}

	subject := fmt.Sprintf("Shipping label for order %s", order.OrderNumber)
	body := fmt.Sprintf(
		"A shipping label was generated for order %s.\r\nCarrier: %s (%s)\r\nTracking: %s\r\n\r\nPrint the attached label and attach it to the package.\r\n",
		order.OrderNumber, shipment.Carrier, shipment.Service, shipment.TrackingNumber)

	filename := fmt.Sprintf("shipping-label-%s.pdf", shipment.TrackingNumber)
	msg := d.messageWithAttachment(d.cfg.FromAddress, subject, body, filename, labelPDF)
	return d.deliver(ctx, d.cfg.FromAddress, msg)
}

func (d *SMTPDispatcher) deliver(ctx context.Context, to string, msg []byte) error {
	if strings.TrimSpace(to) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address required")
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// smtp.SendMail has no context support; bound the call manually.
	done := make(chan error, 1)
	go func() {
		done <- d.send(addr, auth, d.cfg.FromAddress, []string{to}, msg)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send mail")
		}
		return nil
	case <-timer.C:
		return pkgerrors.New(pkgerrors.CodeDependency, "smtp send timed out")
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "send mail cancelled")
	}
}

func (d *SMTPDispatcher) plainMessage(to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", d.cfg.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func (d *SMTPDispatcher) messageWithAttachment(to, subject, body, filename string, attachment []byte) []byte {
	const boundary = "analogfan-mail-boundary"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", d.cfg.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	if len(attachment) > 0 {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: application/pdf\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", filename)

		encoded := base64.StdEncoding.EncodeToString(attachment)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}
