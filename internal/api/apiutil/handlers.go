package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/apperr"
)

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.MalformedNotification, apperr.SignatureInvalid, apperr.UnknownOrder:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorResponse. Processing errors are logged
// and their details withheld from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		writeErrorBody(w, r, handlerErr.Status, ErrorResponse{Message: handlerErr.Message})
		return
	}

	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("kind", string(kind)).Msg("Request failed")
		writeErrorBody(w, r, status, ErrorResponse{Message: "Internal Server Error"})
		return
	}

	body := ErrorResponse{Message: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		if body.Message == "" {
			body.Message = string(appErr.Kind)
		}
		if appErr.Field != "" {
			body.Errors = map[string]string{appErr.Field: appErr.Message}
		}
	}
	writeErrorBody(w, r, status, body)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	if err := WriteJSON(w, status, body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write error response")
	}
}
