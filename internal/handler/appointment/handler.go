package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/service/booking"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/httputil"
)

// Service is the booking surface the appointment routes need.
type Service interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
	Get(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, caller model.Principal, filters model.AppointmentFilters) ([]*model.Appointment, error)
	UpdateStatus(ctx context.Context, caller model.Principal, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	ProvisionRoom(ctx context.Context, caller model.Principal, id uuid.UUID) (*booking.Result, error)
}

type Handler struct {
	service  Service
	binder   *handler.Binder
	location *time.Location
}

// NewHandler builds the appointment routes. Dates and clock times in
// requests are read in loc.
func NewHandler(service Service, binder *handler.Binder, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, binder: binder, location: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.POST("/:id/meeting-room", h.ProvisionMeetingRoom)
	}
}

type CreateAppointmentRequest struct {
	ProviderID     uuid.UUID `json:"provider_id" validate:"required"`
	Date           string    `json:"date" validate:"required,ymd"`
	Time           string    `json:"time" validate:"required,clock"`
	EndTime        string    `json:"end_time" validate:"required,clock"`
	Price          float64   `json:"price" validate:"gte=0"`
	Notes          string    `json:"notes" validate:"max=2000"`
	IdempotencyKey string    `json:"idempotency_key" validate:"max=128"`
}

type UpdateStatusRequest struct {
	Status model.AppointmentStatus `json:"status" validate:"required,oneof=confirmed cancelled completed"`
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req CreateAppointmentRequest
	if err := h.binder.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	day, err := handler.ParseDate(req.Date, h.location)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	start, err := handler.At(day, req.Time, h.location)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	end, err := handler.At(day, req.EndTime, h.location)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}

	result, err := h.service.Book(c.Request.Context(), booking.Request{
		ProviderID:     req.ProviderID,
		ClientID:       caller.AccountID,
		Start:          start,
		End:            end,
		Price:          req.Price,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httputil.RespondWithWarnings(c, status, result, result.Warnings)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var filters model.AppointmentFilters
	if s := c.Query("status"); s != "" {
		filters.Status = model.AppointmentStatus(s)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidTimeFormat(from, err))
			return
		}
		filters.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidTimeFormat(to, err))
			return
		}
		filters.To = t
	}

	appointments, err := h.service.List(c.Request.Context(), caller, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointments)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := h.binder.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointment, err := h.service.UpdateStatus(c.Request.Context(), caller, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}

// ProvisionMeetingRoom retries room provisioning for an appointment that
// was booked while the vendor was degraded.
func (h *Handler) ProvisionMeetingRoom(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.IDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.ProvisionRoom(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithWarnings(c, http.StatusOK, result, result.Warnings)
}
