package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codr1/courtside/internal/apperr"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", apperr.Invalid("start_time", "must be HH:MM"), http.StatusUnprocessableEntity, "must be HH:MM"},
		{"conflict", apperr.Conflicting("This time slot is already booked"), http.StatusConflict, "This time slot is already booked"},
		{"not found", apperr.Missing("Court not found"), http.StatusNotFound, "Court not found"},
		{"malformed", &apperr.Error{Kind: apperr.MalformedNotification, Field: "amount"}, http.StatusBadRequest, "malformed_notification"},
		{"signature", &apperr.Error{Kind: apperr.SignatureInvalid, Message: "Invalid signature"}, http.StatusBadRequest, "Invalid signature"},
		{"unknown order", &apperr.Error{Kind: apperr.UnknownOrder, Message: "Order not found"}, http.StatusBadRequest, "Order not found"},
		{"processing", apperr.Wrap(apperr.Processing, "failed to save", errors.New("disk full")), http.StatusInternalServerError, "Internal Server Error"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
		{"handler error", HandlerError{Status: http.StatusBadRequest, Message: "invalid JSON body"}, http.StatusBadRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			WriteError(recorder, req, tt.err)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status: got %d want %d", recorder.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success {
				t.Fatalf("expected success=false")
			}
			if body.Message != tt.wantMsg {
				t.Fatalf("message: got %q want %q", body.Message, tt.wantMsg)
			}
		})
	}
}

func TestWriteErrorNamesField(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(recorder, req, apperr.Invalid("date", "must be after today"))

	var body ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Errors["date"] != "must be after today" {
		t.Fatalf("unexpected field errors %+v", body.Errors)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Code string `json:"code"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SAVE10","extra":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatalf("expected unknown field error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SAVE10"}{"code":"X"}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatalf("expected trailing data error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SAVE10"}`))
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Code != "SAVE10" {
		t.Fatalf("unexpected code %q", dst.Code)
	}
}

func TestPageFromQuery(t *testing.T) {
	tests := map[string]int{
		"/":         1,
		"/?page=3":  3,
		"/?page=0":  1,
		"/?page=-2": 1,
		"/?page=x":  1,
	}
	for target, want := range tests {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if got := PageFromQuery(req); got != want {
			t.Fatalf("%s: got %d want %d", target, got, want)
		}
	}
}
