package notifications

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/pkg/config"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func testDispatcher(t *testing.T, sendErr error) (*SMTPDispatcher, *[]capturedMail) {
	t.Helper()
	dispatcher, err := NewSMTPDispatcher(config.MailConfig{
		Host:        "smtp.internal",
		Port:        587,
		FromAddress: "orders@analogfan.example",
	})
	if err != nil {
		t.Fatalf("setup dispatcher: %v", err)
	}

	var sent []capturedMail
	dispatcher.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: msg})
		return sendErr
	}
	return dispatcher, &sent
}

func TestSMTPDispatcher_RequiresHost(t *testing.T) {
	if _, err := NewSMTPDispatcher(config.MailConfig{}); err == nil {
		t.Fatalf("expected error without SMTP host")
	}
}

func TestSMTPDispatcher_SendOrderConfirmation(t *testing.T) {
	dispatcher, sent := testDispatcher(t, nil)

	order := &models.Order{
		OrderNumber: "ORD-20260827-0042",
		Email:       "buyer@example.com",
		Subtotal:    decimal.RequireFromString("50.00"),
		TotalAmount: decimal.RequireFromString("67.45"),
	}
	items := []models.OrderItem{{ItemID: 100, Quantity: 2, Price: decimal.RequireFromString("25.00")}}

	if err := dispatcher.SendOrderConfirmation(context.Background(), order, items); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(*sent))
	}
	mail := (*sent)[0]
	if mail.addr != "smtp.internal:587" {
		t.Fatalf("unexpected relay %q", mail.addr)
	}
	if len(mail.to) != 1 || mail.to[0] != "buyer@example.com" {
		t.Fatalf("confirmation must go to the buyer, got %v", mail.to)
	}
	body := string(mail.msg)
	if !strings.Contains(body, "ORD-20260827-0042") || !strings.Contains(body, "67.45") {
		t.Fatalf("mail body missing order details:\n%s", body)
	}
}

func TestSMTPDispatcher_SendShippingLabelGoesToOperator(t *testing.T) {
	dispatcher, sent := testDispatcher(t, nil)

	order := &models.Order{OrderNumber: "ORD-20260827-0042", Email: "buyer@example.com"}
	shipment := &models.Shipment{Carrier: "postnl", Service: "Standard delivery", TrackingNumber: "SC123"}

	if err := dispatcher.SendShippingLabel(context.Background(), order, shipment, []byte("%PDF-1.4")); err != nil {
		t.Fatalf("send: %v", err)
	}
	mail := (*sent)[0]
	if len(mail.to) != 1 || mail.to[0] != "orders@analogfan.example" {
		t.Fatalf("label mail must go to the operator mailbox, got %v", mail.to)
	}
	body := string(mail.msg)
	if !strings.Contains(body, "multipart/mixed") {
		t.Fatalf("expected attachment mail, got:\n%s", body)
	}
	if !strings.Contains(body, `filename="shipping-label-SC123.pdf"`) {
		t.Fatalf("attachment filename missing:\n%s", body)
	}
}

func TestSMTPDispatcher_SendFailureIsDependencyError(t *testing.T) {
	dispatcher, _ := testDispatcher(t, pkgerrors.New(pkgerrors.CodeDependency, "relay refused"))

	order := &models.Order{OrderNumber: "ORD-20260827-0042", Email: "buyer@example.com"}
	err := dispatcher.SendOrderConfirmation(context.Background(), order, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
