package meeting

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/pkg/httputil"
)

type RoomService interface {
	Room(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error)
	Start(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error)
	End(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error)
}

// AppointmentReader checks that the caller takes part in the room's
// appointment.
type AppointmentReader interface {
	Get(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.Appointment, error)
}

type Handler struct {
	rooms        RoomService
	appointments AppointmentReader
}

func NewHandler(rooms RoomService, appointments AppointmentReader) *Handler {
	return &Handler{rooms: rooms, appointments: appointments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/meeting-rooms")
	{
		rooms.GET("/:id", h.GetRoom)
		rooms.POST("/:id/start", h.StartRoom)
		rooms.POST("/:id/end", h.EndRoom)
	}
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, ok := h.load(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, room)
}

func (h *Handler) StartRoom(c *gin.Context) {
	h.transition(c, h.rooms.Start)
}

func (h *Handler) EndRoom(c *gin.Context) {
	h.transition(c, h.rooms.End)
}

func (h *Handler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.MeetingRoom, error)) {
	room, ok := h.load(c)
	if !ok {
		return
	}
	updated, err := fn(c.Request.Context(), room.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) load(c *gin.Context) (*model.MeetingRoom, bool) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	id, err := handler.IDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}

	room, err := h.rooms.Room(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	if _, err := h.appointments.Get(c.Request.Context(), caller, room.AppointmentID); err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return room, true
}
