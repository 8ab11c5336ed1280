package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

const (
	fallbackEmail  = "no-email@example.com"
	fallbackMobile = "000000000"
)

// CheckoutConfig describes the merchant account used to open the hosted
// checkout page.
type CheckoutConfig struct {
	MerchantID    string
	VerifyKey     string
	ActionURL     string // may contain %s for the merchant id
	Currency      string
	ReturnURL     string
	CallbackURL   string
	DefaultRegion string
}

// Order is the sale being paid for.
type Order struct {
	ID         int64
	TotalCents int64
}

// Payer identifies the customer on the checkout page.
type Payer struct {
	Name  string
	Email string
	Phone string
}

// Checkout is the form the client posts to the hosted checkout page.
type Checkout struct {
	Method    string            `json:"method"`
	ActionURL string            `json:"action_url"`
	Params    map[string]string `json:"params"`
}

// NewCheckout builds the checkout form for order. vcode is
// md5(amount + merchantID + orderid + verifyKey).
func NewCheckout(cfg CheckoutConfig, order Order, payer Payer) (Checkout, error) {
	if cfg.MerchantID == "" || cfg.VerifyKey == "" {
		return Checkout{}, fmt.Errorf("merchant id and verify key are required")
	}
	if order.ID <= 0 {
		return Checkout{}, fmt.Errorf("order id must be positive")
	}

	amount := FormatAmount(order.TotalCents)
	orderID := strconv.FormatInt(order.ID, 10)
	email := strings.TrimSpace(payer.Email)
	if email == "" {
		email = fallbackEmail
	}

	params := map[string]string{
		"amount":      amount,
		"orderid":     orderID,
		"bill_name":   strings.TrimSpace(payer.Name),
		"bill_email":  email,
		"bill_mobile": NormalizeMobile(payer.Phone, cfg.DefaultRegion),
		"bill_desc":   fmt.Sprintf("Booking %s", orderID),
		"cur":         cfg.Currency,
		"returnurl":   cfg.ReturnURL,
		"callbackurl": cfg.CallbackURL,
		"vcode":       digest(amount + cfg.MerchantID + orderID + cfg.VerifyKey),
	}

	action := cfg.ActionURL
	if strings.Contains(action, "%s") {
		action = fmt.Sprintf(action, cfg.MerchantID)
	}

	return Checkout{
		Method:    "POST",
		ActionURL: action,
		Params:    params,
	}, nil
}

// NormalizeMobile returns the phone number as bare E.164 digits. Numbers that
// cannot be parsed fall back to their digits, and an empty number to a
// placeholder the gateway accepts.
func NormalizeMobile(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallbackMobile
	}
	if region == "" {
		region = "MY"
	}
	if parsed, err := phonenumbers.Parse(raw, strings.ToUpper(region)); err == nil && phonenumbers.IsValidNumber(parsed) {
		return strings.TrimPrefix(phonenumbers.Format(parsed, phonenumbers.E164), "+")
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return fallbackMobile
	}
	return digits
}
