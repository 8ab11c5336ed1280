// internal/api/courts/handlers.go
package courts

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/api/apiutil"
	"github.com/codr1/courtside/internal/booking"
	"github.com/codr1/courtside/internal/db/queries"
)

var (
	service     *booking.Service
	serviceOnce sync.Once
)

const courtsQueryTimeout = 5 * time.Second

type courtResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PricePerHourCents int64  `json:"price_per_hour_cents"`
	OpeningTime       string `json:"opening_time,omitempty"`
	ClosingTime       string `json:"closing_time,omitempty"`
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

// GET /api/v1/courts
func HandleListCourts(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	courts, err := svc.Courts(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resp := make([]courtResponse, 0, len(courts))
	for _, court := range courts {
		resp = append(resp, newCourtResponse(court))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"data": resp}); err != nil {
		logger.Error().Err(err).Msg("Failed to write courts response")
	}
}

// GET /api/v1/courts/{id}/availability?date=YYYY-MM-DD
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	day, err := svc.Availability(ctx, courtID, date)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, day); err != nil {
		logger.Error().Err(err).Int64("court_id", courtID).Msg("Failed to write availability response")
	}
}

func newCourtResponse(court queries.Court) courtResponse {
	return courtResponse{
		ID:                court.ID,
		Name:              court.Name,
		PricePerHourCents: court.PricePerHourCents,
		OpeningTime:       court.OpeningTime.String,
		ClosingTime:       court.ClosingTime.String,
	}
}

func loadService() *booking.Service {
	return service
}
