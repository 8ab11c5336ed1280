package email

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/courtside/internal/config"
)

type fakeEmailSender struct {
	sendCalls int32
	recipient string
	subject   string
	body      string
	err       error
	deadline  time.Time
	ctxErr    error
}

func (f *fakeEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	atomic.AddInt32(&f.sendCalls, 1)
	f.recipient = recipient
	f.subject = subject
	f.body = body
	f.deadline, _ = ctx.Deadline()
	f.ctxErr = ctx.Err()
	return f.err
}

func (f *fakeEmailSender) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	return f.Send(ctx, recipient, subject, body)
}

func TestBuildPaymentReceipt(t *testing.T) {
	message := BuildPaymentReceipt(Receipt{
		CustomerName:  "Aina",
		CourtName:     "Court 1",
		Date:          "2026-03-10",
		StartTime:     "10:00",
		EndTime:       "11:00",
		Amount:        "40.00",
		Currency:      "MYR",
		TransactionID: "TX1001",
		SaleID:        42,
	})

	if message.Subject != "Payment received - Court 1" {
		t.Fatalf("unexpected subject %q", message.Subject)
	}
	for _, want := range []string{"Hi Aina,", "Date: 2026-03-10", "Time: 10:00 - 11:00", "Amount: MYR 40.00", "Transaction: TX1001", "Order: 42"} {
		if !strings.Contains(message.Body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, message.Body)
		}
	}
}

func TestBuildPaymentReceipt_MissingBookingDetails(t *testing.T) {
	message := BuildPaymentReceipt(Receipt{Amount: "10.00", Currency: "MYR", TransactionID: "TX1"})

	if message.Subject != "Payment received - your court" {
		t.Fatalf("unexpected subject %q", message.Subject)
	}
	if strings.Contains(message.Body, "Date:") || strings.Contains(message.Body, "Time:") {
		t.Fatalf("expected date and time lines to be omitted, got:\n%s", message.Body)
	}
}

func TestSendPaymentReceipt_DetachesFromCanceledParent(t *testing.T) {
	sender := &fakeEmailSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SendPaymentReceipt(ctx, sender, " member@test.com ", Message{Subject: "S", Body: "B"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&sender.sendCalls) != 1 {
		t.Fatalf("expected one send call, got %d", sender.sendCalls)
	}
	if sender.ctxErr != nil {
		t.Fatalf("expected live send context, got %v", sender.ctxErr)
	}
	if sender.deadline.IsZero() {
		t.Fatalf("expected send context to carry a deadline")
	}
	if sender.recipient != "member@test.com" {
		t.Fatalf("expected trimmed recipient, got %q", sender.recipient)
	}
}

func TestSendPaymentReceipt_ReturnsSenderError(t *testing.T) {
	sender := &fakeEmailSender{err: errors.New("throttled")}
	logger := zerolog.Nop()

	err := SendPaymentReceipt(context.Background(), sender, "member@test.com", Message{Subject: "S", Body: "B"}, &logger)
	if err == nil || err.Error() != "throttled" {
		t.Fatalf("expected sender error, got %v", err)
	}
}

func TestSendPaymentReceipt_SkipsWithoutRecipientOrClient(t *testing.T) {
	sender := &fakeEmailSender{}

	if err := SendPaymentReceipt(context.Background(), sender, "  ", Message{Subject: "S", Body: "B"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SendPaymentReceipt(context.Background(), nil, "member@test.com", Message{Subject: "S", Body: "B"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.sendCalls != 0 {
		t.Fatalf("expected no sends, got %d", sender.sendCalls)
	}
}

func TestNewSESClientFromConfig_DisabledWithoutCredentials(t *testing.T) {
	client, err := NewSESClientFromConfig(config.EmailConfig{Region: "ap-southeast-1", Sender: "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Fatalf("expected nil client when email is not configured")
	}
}

func TestNewSESClient_RequiresSender(t *testing.T) {
	if _, err := NewSESClient("AKIA", "secret", "ap-southeast-1", ""); err == nil {
		t.Fatalf("expected error for missing sender")
	}
	if _, err := NewSESClient("", "secret", "ap-southeast-1", "a@b.c"); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
