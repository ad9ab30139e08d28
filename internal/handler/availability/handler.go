package availability

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/model"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/httputil"
)

type Service interface {
	ForDay(ctx context.Context, providerID uuid.UUID, day time.Time, part model.DayPart) ([]model.TimeSlot, error)
}

type Handler struct {
	service  Service
	location *time.Location
}

func NewHandler(service Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, location: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:providerId/availability", h.GetAvailability)
}

type availabilityResponse struct {
	ProviderID uuid.UUID        `json:"provider_id"`
	Date       string           `json:"date"`
	DayPart    model.DayPart    `json:"day_part,omitempty"`
	Slots      []model.TimeSlot `json:"slots"`
}

// GetAvailability returns the day's slot grid with each slot marked
// available or taken.
func (h *Handler) GetAvailability(c *gin.Context) {
	providerID, err := handler.IDParam(c, "providerId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	date := c.Query("date")
	if date == "" {
		httputil.RespondWithError(c, apperrors.Validation("date is required", nil))
		return
	}
	day, err := handler.ParseDate(date, h.location)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	part, err := model.ParseDayPart(c.Query("day_part"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	slots, err := h.service.ForDay(c.Request.Context(), providerID, day, part)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}

	httputil.RespondWithSuccess(c, http.StatusOK, availabilityResponse{
		ProviderID: providerID,
		Date:       date,
		DayPart:    part,
		Slots:      slots,
	})
}
