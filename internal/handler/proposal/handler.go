package proposal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/service/proposal"
	"github.com/jwalitptl/scheduling-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, caller model.Principal, in proposal.CreateInput) (*model.SlotProposal, error)
	UpdateSlots(ctx context.Context, caller model.Principal, id uuid.UUID, slots model.ProposedSlots) (*model.SlotProposal, error)
	Get(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.SlotProposal, error)
	Send(ctx context.Context, caller model.Principal, id uuid.UUID) (*proposal.SendResult, error)
}

type Handler struct {
	service Service
	binder  *handler.Binder
}

func NewHandler(service Service, binder *handler.Binder) *Handler {
	return &Handler{service: service, binder: binder}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	proposals := r.Group("/slot-proposals")
	{
		proposals.POST("", h.CreateProposal)
		proposals.GET("/:id", h.GetProposal)
		proposals.PUT("/:id/slots", h.UpdateSlots)
		proposals.POST("/:id/send", h.SendProposal)
	}
}

type SlotRequest struct {
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
	Confidence *float64  `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

type CreateProposalRequest struct {
	ClientID uuid.UUID     `json:"client_id" validate:"required"`
	Slots    []SlotRequest `json:"proposed_slots" validate:"max=5,dive"`
	Price    float64       `json:"price" validate:"gte=0"`
	Notes    string        `json:"notes" validate:"max=2000"`
}

type UpdateSlotsRequest struct {
	Slots []SlotRequest `json:"proposed_slots" validate:"max=5,dive"`
}

func toSlots(in []SlotRequest) model.ProposedSlots {
	slots := make(model.ProposedSlots, 0, len(in))
	for _, s := range in {
		slots = append(slots, model.ProposedSlot{Start: s.Start, End: s.End, Confidence: s.Confidence})
	}
	return slots
}

func (h *Handler) CreateProposal(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req CreateProposalRequest
	if err := h.binder.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.Create(c.Request.Context(), caller, proposal.CreateInput{
		ClientID: req.ClientID,
		Slots:    toSlots(req.Slots),
		Price:    req.Price,
		Notes:    req.Notes,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) GetProposal(c *gin.Context) {
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

	p, err := h.service.Get(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) UpdateSlots(c *gin.Context) {
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

	var req UpdateSlotsRequest
	if err := h.binder.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.UpdateSlots(c.Request.Context(), caller, id, toSlots(req.Slots))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

// SendProposal books every slot and reports the outcome per slot. Partial
// success is still a 200.
func (h *Handler) SendProposal(c *gin.Context) {
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

	result, err := h.service.Send(c.Request.Context(), caller, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithWarnings(c, http.StatusOK, result, result.Warnings)
}
