// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/api/apiutil"
	"github.com/codr1/courtside/internal/booking"
)

const reservationsQueryTimeout = 5 * time.Second

var (
	service     *booking.Service
	serviceOnce sync.Once
)

type bookingResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    booking.Booking `json:"data"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s *booking.Service) {
	if s == nil {
		return
	}
	serviceOnce.Do(func() {
		service = s
	})
}

// POST /api/v1/reservations
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var in booking.CreateInput
	if err := apiutil.DecodeJSON(r, &in); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	created, err := svc.Create(ctx, in)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().
		Int64("reservation_id", created.Reservation.ID).
		Int64("sale_id", created.Sale.ID).
		Int64("court_id", created.Reservation.CourtID).
		Msg("Reservation created")

	resp := bookingResponse{Success: true, Message: "Booking created successfully", Data: created}
	if err := apiutil.WriteJSON(w, http.StatusCreated, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation response")
	}
}

// GET /api/v1/reservations?customer_id=&page=
func HandleList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	customerID, err := apiutil.QueryID(r, "customer_id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	page, err := svc.ListForCustomer(ctx, customerID, apiutil.PageFromQuery(r))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, page); err != nil {
		logger.Error().Err(err).Int64("customer_id", customerID).Msg("Failed to write reservations response")
	}
}

// GET /api/v1/reservations/{id}?customer_id=
func HandleGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	customerID, err := apiutil.QueryID(r, "customer_id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	found, err := svc.Get(ctx, id, customerID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, bookingResponse{Success: true, Data: found}); err != nil {
		logger.Error().Err(err).Int64("reservation_id", id).Msg("Failed to write reservation response")
	}
}

// PUT /api/v1/reservations/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	var in booking.UpdateInput
	if err := apiutil.DecodeJSON(r, &in); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	updated, err := svc.Update(ctx, id, in)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().Int64("reservation_id", id).Msg("Reservation rescheduled")

	resp := bookingResponse{Success: true, Message: "Booking updated successfully", Data: updated}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("reservation_id", id).Msg("Failed to write reservation response")
	}
}

func loadService() *booking.Service {
	return service
}
