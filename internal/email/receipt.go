package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const receiptEmailTimeout = 5 * time.Second

type Message struct {
	Subject string
	Body    string
}

// Receipt is what a customer sees after a completed payment.
type Receipt struct {
	CustomerName  string
	CourtName     string
	Date          string
	StartTime     string
	EndTime       string
	Amount        string
	Currency      string
	TransactionID string
	SaleID        int64
}

func BuildPaymentReceipt(r Receipt) Message {
	court := strings.TrimSpace(r.CourtName)
	if court == "" {
		court = "your court"
	}
	name := strings.TrimSpace(r.CustomerName)
	if name == "" {
		name = "there"
	}

	lines := []string{
		fmt.Sprintf("Hi %s,", name),
		"",
		"We received your payment and your booking is confirmed.",
		"",
		fmt.Sprintf("Court: %s", court),
	}
	if r.Date != "" {
		lines = append(lines, fmt.Sprintf("Date: %s", r.Date))
	}
	if r.StartTime != "" && r.EndTime != "" {
		lines = append(lines, fmt.Sprintf("Time: %s - %s", r.StartTime, r.EndTime))
	}
	lines = append(lines,
		fmt.Sprintf("Amount: %s %s", r.Currency, r.Amount),
		fmt.Sprintf("Transaction: %s", r.TransactionID),
		fmt.Sprintf("Order: %d", r.SaleID),
	)

	return Message{
		Subject: fmt.Sprintf("Payment received - %s", court),
		Body:    strings.Join(lines, "\n"),
	}
}

// SendPaymentReceipt delivers the receipt and waits for the result. Failures
// are logged and returned; callers decide whether they matter.
func SendPaymentReceipt(ctx context.Context, client EmailSender, recipient string, message Message, logger *zerolog.Logger) error {
	if client == nil {
		return nil
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || message.Subject == "" || message.Body == "" {
		return nil
	}

	sendCtx, cancel := newEmailContext(ctx, receiptEmailTimeout)
	defer cancel()

	if err := client.Send(sendCtx, recipient, message.Subject, message.Body); err != nil {
		if logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send payment receipt")
		}
		return err
	}
	if logger != nil {
		logger.Info().Str("recipient", recipient).Msg("Payment receipt sent")
	}
	return nil
}
