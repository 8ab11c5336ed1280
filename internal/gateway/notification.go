// Package gateway holds the wire-level contract with the hosted payment
// gateway: the notification it posts back, its signature scheme, its status
// codes and the parameters its checkout page expects.
package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/codr1/courtside/internal/models"
)

// CallbackAck is the literal body the gateway expects from the
// server-to-server callback. Anything else makes it retry.
const CallbackAck = "CBTOKEN:MPSTATOK"

// Gateway status codes.
const (
	CodeSuccess = "00"
	CodeFailed  = "11"
	CodePending = "22"
)

const payDateLayout = "2006-01-02 15:04:05"

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// notificationForm mirrors the posted form. Pointers distinguish a missing
// field from one sent empty; the gateway legitimately sends an empty appcode
// for some failed payments.
type notificationForm struct {
	TranID    *string `form:"tranID" validate:"required"`
	OrderID   *string `form:"orderid" validate:"required"`
	Status    *string `form:"status" validate:"required"`
	Domain    *string `form:"domain" validate:"required"`
	Amount    *string `form:"amount" validate:"required"`
	Currency  *string `form:"currency" validate:"required"`
	PayDate   *string `form:"paydate" validate:"required"`
	AppCode   *string `form:"appcode" validate:"required"`
	Skey      *string `form:"skey" validate:"required"`
	Channel   *string `form:"channel"`
	ErrorCode *string `form:"error_code"`
	ErrorDesc *string `form:"error_desc"`
}

// Notification is a payment outcome posted by the gateway.
type Notification struct {
	TranID    string
	OrderID   string
	Status    string
	Domain    string
	Amount    string
	Currency  string
	PayDate   string
	AppCode   string
	Skey      string
	Channel   string
	ErrorCode string
	ErrorDesc string

	// Raw is the form exactly as received, kept for audit.
	Raw url.Values
}

// MissingFieldError reports the first required field absent from a
// notification.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Field)
}

// ParseNotification validates a posted form and converts it to a
// Notification. It fails with MissingFieldError when a required field is
// absent.
func ParseNotification(values url.Values) (Notification, error) {
	form := notificationForm{
		TranID:    lookup(values, "tranID"),
		OrderID:   lookup(values, "orderid"),
		Status:    lookup(values, "status"),
		Domain:    lookup(values, "domain"),
		Amount:    lookup(values, "amount"),
		Currency:  lookup(values, "currency"),
		PayDate:   lookup(values, "paydate"),
		AppCode:   lookup(values, "appcode"),
		Skey:      lookup(values, "skey"),
		Channel:   lookup(values, "channel"),
		ErrorCode: lookup(values, "error_code"),
		ErrorDesc: lookup(values, "error_desc"),
	}

	if err := formValidator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Notification{}, MissingFieldError{Field: fieldErrs[0].Field()}
		}
		return Notification{}, fmt.Errorf("validate notification: %w", err)
	}

	return Notification{
		TranID:    *form.TranID,
		OrderID:   *form.OrderID,
		Status:    *form.Status,
		Domain:    *form.Domain,
		Amount:    *form.Amount,
		Currency:  *form.Currency,
		PayDate:   *form.PayDate,
		AppCode:   *form.AppCode,
		Skey:      *form.Skey,
		Channel:   deref(form.Channel),
		ErrorCode: deref(form.ErrorCode),
		ErrorDesc: deref(form.ErrorDesc),
		Raw:       cloneValues(values),
	}, nil
}

// Validate checks a Notification built by hand (tests, replays) the same way
// ParseNotification checks a form.
func (n Notification) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"tranID", n.TranID},
		{"orderid", n.OrderID},
		{"status", n.Status},
		{"domain", n.Domain},
		{"amount", n.Amount},
		{"currency", n.Currency},
		{"paydate", n.PayDate},
		{"skey", n.Skey},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return MissingFieldError{Field: field.name}
		}
	}
	return nil
}

// Values renders the notification as the form the gateway would post.
func (n Notification) Values() url.Values {
	if n.Raw != nil {
		return cloneValues(n.Raw)
	}
	values := url.Values{}
	values.Set("tranID", n.TranID)
	values.Set("orderid", n.OrderID)
	values.Set("status", n.Status)
	values.Set("domain", n.Domain)
	values.Set("amount", n.Amount)
	values.Set("currency", n.Currency)
	values.Set("paydate", n.PayDate)
	values.Set("appcode", n.AppCode)
	values.Set("skey", n.Skey)
	if n.Channel != "" {
		values.Set("channel", n.Channel)
	}
	if n.ErrorCode != "" {
		values.Set("error_code", n.ErrorCode)
	}
	if n.ErrorDesc != "" {
		values.Set("error_desc", n.ErrorDesc)
	}
	return values
}

// OrderNumber parses the order id as the numeric sale id it was issued from.
func (n Notification) OrderNumber() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(n.OrderID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SettledAt parses the settlement date. The gateway reports it without a zone
// in the merchant's local time.
func (n Notification) SettledAt(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	raw := strings.TrimSpace(n.PayDate)
	for _, layout := range []string{payDateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		parsed, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// MapStatus translates a gateway status code into a transaction status.
func MapStatus(code string) string {
	switch strings.TrimSpace(code) {
	case CodeSuccess:
		return models.TransactionCompleted
	case CodeFailed:
		return models.TransactionFailed
	case CodePending:
		return models.TransactionPending
	default:
		return models.TransactionUnknown
	}
}

// ParseAmountCents converts a decimal amount such as "40.00" into cents.
func ParseAmountCents(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", raw)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("amount %q is not a decimal number", raw)
	}
	cents := int64(0)
	if frac != "" {
		frac += strings.Repeat("0", 2-len(frac))
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("amount %q is not a decimal number", raw)
		}
	}
	return units*100 + cents, nil
}

// FormatAmount renders cents the way the gateway expects amounts: two
// decimals, dot separator, no grouping.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func lookup(values url.Values, key string) *string {
	raw, ok := values[key]
	if !ok {
		return nil
	}
	value := ""
	if len(raw) > 0 {
		value = raw[0]
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
