package payments

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/codr1/courtside/internal/api/apiutil"
	"github.com/codr1/courtside/internal/booking"
	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/models"
	"github.com/codr1/courtside/internal/reconcile"
	"github.com/codr1/courtside/internal/testutil"
)

const testSecret = "s3cret"

type paymentsFixture struct {
	db            *db.DB
	saleID        int64
	reservationID int64
}

func resetHandlers() {
	bookingService = nil
	reconciler = nil
	handlersOnce = sync.Once{}
}

func setupPaymentsTest(t *testing.T) paymentsFixture {
	t.Helper()

	database := testutil.NewTestDB(t)
	svc, err := booking.New(booking.Config{
		DB:       database,
		Location: time.UTC,
		Checkout: gateway.CheckoutConfig{
			MerchantID:    "AMcourtside",
			VerifyKey:     "v3rify",
			ActionURL:     "https://pay.example.com/RMS/pay/%s/",
			Currency:      "MYR",
			ReturnURL:     "http://localhost/payment/return",
			CallbackURL:   "http://localhost/payment/callback",
			DefaultRegion: "MY",
		},
	})
	if err != nil {
		t.Fatalf("new booking service: %v", err)
	}
	rec, err := reconcile.New(reconcile.Config{
		DB:       database,
		Secret:   testSecret,
		Timeline: svc.Timeline(),
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	resetHandlers()
	InitHandlers(svc, rec)
	t.Cleanup(resetHandlers)

	court := testutil.SeedCourt(t, database, "Court 1", 4000, "08:00", "22:00")
	customer := testutil.SeedCustomer(t, database, "Aina", "aina@example.com")
	sale, res := testutil.SeedBooking(t, database, court.ID, customer.ID, "2026-03-10", "10:00", "11:00", models.ReservationPending, 4000)

	return paymentsFixture{db: database, saleID: sale.ID, reservationID: res.ID}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/payments/initiate/{sale_id}", HandleInitiate)
	mux.HandleFunc("GET /payment/return", HandleReturn)
	mux.HandleFunc("POST /payment/return", HandleReturn)
	mux.HandleFunc("POST /payment/callback", HandleCallback)
	mux.HandleFunc("POST /api/v1/payments/status", HandleStatus)
	return mux
}

// signedForm returns a gateway notification form with a valid skey.
func signedForm(t *testing.T, tranID string, saleID int64, status string) url.Values {
	t.Helper()
	form := url.Values{}
	form.Set("tranID", tranID)
	form.Set("orderid", strconv.FormatInt(saleID, 10))
	form.Set("status", status)
	form.Set("domain", "AMcourtside")
	form.Set("amount", "40.00")
	form.Set("currency", "MYR")
	form.Set("paydate", "2026-03-10 10:15:00")
	form.Set("appcode", "A1B2C3")
	form.Set("channel", "fpx")
	form.Set("skey", "unsigned")

	n, err := gateway.ParseNotification(form)
	if err != nil {
		t.Fatalf("parse notification: %v", err)
	}
	signer, err := gateway.NewSigner(testSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	form.Set("skey", signer.Sign(n))
	return form
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleInitiate(t *testing.T) {
	f := setupPaymentsTest(t)

	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/payments/initiate/%d", f.saleID), nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var checkout gateway.Checkout
	if err := json.Unmarshal(recorder.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if checkout.ActionURL != "https://pay.example.com/RMS/pay/AMcourtside/" {
		t.Fatalf("unexpected action url %q", checkout.ActionURL)
	}
	if checkout.Params["amount"] != "40.00" || checkout.Params["orderid"] != strconv.FormatInt(f.saleID, 10) {
		t.Fatalf("unexpected params %+v", checkout.Params)
	}
	if checkout.Params["vcode"] == "" {
		t.Fatalf("expected vcode")
	}

	recorder = httptest.NewRecorder()
	newMux().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/payments/initiate/999", nil))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown sale status: %d", recorder.Code)
	}
}

func TestHandleReturn_Completed(t *testing.T) {
	f := setupPaymentsTest(t)

	form := signedForm(t, "TX1001", f.saleID, gateway.CodeSuccess)
	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/payment/return?"+form.Encode(), nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var resp returnResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Status != models.TransactionCompleted {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.SaleID != f.saleID || resp.BookingID != f.reservationID {
		t.Fatalf("unexpected ids %+v", resp)
	}
	if resp.Transaction == nil || resp.Transaction.TranID != "TX1001" || resp.Transaction.BookingDetails == nil {
		t.Fatalf("unexpected transaction echo %+v", resp.Transaction)
	}
	if resp.Transaction.BookingDetails.CourtName != "Court 1" {
		t.Fatalf("unexpected booking details %+v", resp.Transaction.BookingDetails)
	}

	res, err := f.db.Queries.GetReservation(context.Background(), f.reservationID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if res.Status != models.ReservationConfirmed {
		t.Fatalf("expected confirmed reservation, got %q", res.Status)
	}
}

func TestHandleReturn_Failed(t *testing.T) {
	f := setupPaymentsTest(t)

	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, postForm("/payment/return", signedForm(t, "TX1002", f.saleID, gateway.CodeFailed)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
	var resp returnResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Status != models.TransactionFailed {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHandleReturn_PendingIsProcessedButNotSuccessful(t *testing.T) {
	f := setupPaymentsTest(t)

	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, postForm("/payment/return", signedForm(t, "TX1003", f.saleID, gateway.CodePending)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
	var resp returnResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Status != models.TransactionPending {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Transaction == nil || resp.Transaction.TranID != "TX1003" {
		t.Fatalf("expected transaction echo, got %+v", resp.Transaction)
	}
}

func TestHandleReturn_Rejections(t *testing.T) {
	f := setupPaymentsTest(t)

	tampered := signedForm(t, "TX2001", f.saleID, gateway.CodeSuccess)
	tampered.Set("amount", "1.00")

	missing := signedForm(t, "TX2002", f.saleID, gateway.CodeSuccess)
	missing.Del("paydate")

	unknown := signedForm(t, "TX2003", 999, gateway.CodeSuccess)

	tests := []struct {
		name    string
		form    url.Values
		wantMsg string
	}{
		{"bad signature", tampered, "Invalid signature"},
		{"missing field", missing, "missing required parameter"},
		{"unknown order", unknown, "Order not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			newMux().ServeHTTP(recorder, postForm("/payment/return", tt.form))

			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status: %d", recorder.Code)
			}
			var body apiutil.ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Message != tt.wantMsg {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}

	count, err := f.db.Queries.CountTransactions(context.Background())
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no transactions, got %d", count)
	}
}

func TestHandleCallback_Acknowledges(t *testing.T) {
	f := setupPaymentsTest(t)

	tampered := signedForm(t, "TX3002", f.saleID, gateway.CodeSuccess)
	tampered.Set("status", gateway.CodeFailed)

	tests := []struct {
		name string
		form url.Values
	}{
		{"completed", signedForm(t, "TX3001", f.saleID, gateway.CodeSuccess)},
		{"redelivered", signedForm(t, "TX3001", f.saleID, gateway.CodeSuccess)},
		{"bad signature", tampered},
		{"unknown order", signedForm(t, "TX3003", 999, gateway.CodeSuccess)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			newMux().ServeHTTP(recorder, postForm("/payment/callback", tt.form))

			if recorder.Code != http.StatusOK {
				t.Fatalf("status: %d", recorder.Code)
			}
			if recorder.Body.String() != gateway.CallbackAck {
				t.Fatalf("unexpected body %q", recorder.Body.String())
			}
		})
	}

	count, err := f.db.Queries.CountTransactions(context.Background())
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one transaction, got %d", count)
	}
}

func TestHandleCallback_ProcessingErrorIs500(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	database := db.Wrap(mockDB)
	svc, err := booking.New(booking.Config{DB: database})
	if err != nil {
		t.Fatalf("new booking service: %v", err)
	}
	rec, err := reconcile.New(reconcile.Config{DB: database, Secret: testSecret})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	resetHandlers()
	InitHandlers(svc, rec)
	t.Cleanup(resetHandlers)

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, postForm("/payment/callback", signedForm(t, "TX4001", 42, gateway.CodeSuccess)))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", recorder.Code)
	}
	if recorder.Body.String() == gateway.CallbackAck {
		t.Fatalf("processing failure must not be acknowledged")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	f := setupPaymentsTest(t)

	recorder := httptest.NewRecorder()
	newMux().ServeHTTP(recorder, postForm("/payment/callback", signedForm(t, "TX5001", f.saleID, gateway.CodePending)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("callback status: %d", recorder.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"known", `{"transaction_id":"TX5001"}`, http.StatusOK},
		{"unknown", `{"transaction_id":"TX9999"}`, http.StatusNotFound},
		{"empty", `{"transaction_id":""}`, http.StatusUnprocessableEntity},
		{"malformed", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			newMux().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/payments/status", strings.NewReader(tt.body)))

			if recorder.Code != tt.want {
				t.Fatalf("status: got %d want %d", recorder.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var resp transactionResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.SaleID != f.saleID || resp.Status != models.TransactionPending || resp.Amount != "40.00" {
				t.Fatalf("unexpected transaction %+v", resp)
			}
			if resp.PaymentDate == nil || resp.PaymentChannel != "fpx" {
				t.Fatalf("expected settlement details, got %+v", resp)
			}
		})
	}
}
