// internal/api/promocodes/handlers.go
package promocodes

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/api/apiutil"
	"github.com/codr1/courtside/internal/booking"
)

const promoQueryTimeout = 5 * time.Second

var (
	service     *booking.Service
	serviceOnce sync.Once
)

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Valid              bool      `json:"valid"`
	Code               string    `json:"code"`
	DiscountPercentage int64     `json:"discount_percentage"`
	Description        string    `json:"description"`
	ExpiresAt          time.Time `json:"expires_at"`
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

// POST /api/v1/promo-codes/validate
func HandleValidate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := service
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req validateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), promoQueryTimeout)
	defer cancel()

	promo, err := svc.ValidatePromo(ctx, req.Code)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resp := validateResponse{
		Valid:              true,
		Code:               promo.Code,
		DiscountPercentage: promo.DiscountPercentage,
		Description:        promo.Description,
		ExpiresAt:          promo.ExpiresAt,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write promo code response")
	}
}
