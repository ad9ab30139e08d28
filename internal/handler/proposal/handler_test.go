package proposal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/middleware"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/service/proposal"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
)

type stubService struct {
	created proposal.CreateInput
	send    func(id uuid.UUID) (*proposal.SendResult, error)
}

func (s *stubService) Create(_ context.Context, caller model.Principal, in proposal.CreateInput) (*model.SlotProposal, error) {
	s.created = in
	return &model.SlotProposal{ProviderID: caller.AccountID, ClientID: in.ClientID, Status: model.ProposalStatusDraft, Slots: in.Slots}, nil
}

func (s *stubService) UpdateSlots(context.Context, model.Principal, uuid.UUID, model.ProposedSlots) (*model.SlotProposal, error) {
	return nil, apperrors.ProposalNotDraft("sent")
}

func (s *stubService) Get(context.Context, model.Principal, uuid.UUID) (*model.SlotProposal, error) {
	return nil, apperrors.NotFound("slot proposal", nil)
}

func (s *stubService) Send(_ context.Context, _ model.Principal, id uuid.UUID) (*proposal.SendResult, error) {
	return s.send(id)
}

func newEngine(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, model.Principal{AccountID: uuid.New(), Role: model.RoleProvider})
	})
	NewHandler(svc, handler.NewBinder()).RegisterRoutes(api)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestCreateProposal(t *testing.T) {
	svc := &stubService{}
	r := newEngine(svc)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	status, _ := call(t, r, http.MethodPost, "/api/v1/slot-proposals", gin.H{
		"client_id": uuid.New(),
		"proposed_slots": []gin.H{
			{"start": start, "end": start.Add(45 * time.Minute), "confidence": 0.9},
			{"start": start.Add(2 * time.Hour), "end": start.Add(2*time.Hour + 45*time.Minute)},
		},
		"price": 80,
	})
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, svc.created.Slots, 2)
	assert.Equal(t, 0.9, svc.created.Slots[0].ConfidenceOrDefault())
	assert.Equal(t, model.DefaultSlotConfidence, svc.created.Slots[1].ConfidenceOrDefault())

	status, out := call(t, r, http.MethodPost, "/api/v1/slot-proposals", gin.H{
		"client_id":      uuid.New(),
		"proposed_slots": []gin.H{{"start": start, "end": start.Add(-time.Hour)}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", out["code"])

	var six []gin.H
	for i := 0; i < 6; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		six = append(six, gin.H{"start": s, "end": s.Add(45 * time.Minute)})
	}
	status, out = call(t, r, http.MethodPost, "/api/v1/slot-proposals", gin.H{
		"client_id":      uuid.New(),
		"proposed_slots": six,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", out["code"])
}

func TestSendProposal(t *testing.T) {
	apptID := uuid.New()
	svc := &stubService{send: func(uuid.UUID) (*proposal.SendResult, error) {
		return &proposal.SendResult{
			AppointmentsCreated: 1,
			AppointmentIDs:      []uuid.UUID{apptID},
			Results: []proposal.SlotResult{
				{Index: 0, Outcome: proposal.SlotCreated, AppointmentID: &apptID},
				{Index: 1, Outcome: proposal.SlotFailed, ErrorCode: apperrors.CodeSlotNoLongerAvailable},
			},
			Warnings: []model.Warning{{Code: model.WarningNotificationFailed, Message: "broker down"}},
		}, nil
	}}
	r := newEngine(svc)

	status, out := call(t, r, http.MethodPost, "/api/v1/slot-proposals/"+uuid.NewString()+"/send", nil)
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["appointments_created"])
	assert.Len(t, data["results"], 2)
	assert.Len(t, out["warnings"], 1)

	svc.send = func(uuid.UUID) (*proposal.SendResult, error) { return nil, apperrors.ProposalNotDraft("sent") }
	status, out = call(t, r, http.MethodPost, "/api/v1/slot-proposals/"+uuid.NewString()+"/send", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PROPOSAL_NOT_DRAFT", out["code"])

	svc.send = func(uuid.UUID) (*proposal.SendResult, error) { return nil, apperrors.EmptyProposal() }
	status, out = call(t, r, http.MethodPost, "/api/v1/slot-proposals/"+uuid.NewString()+"/send", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "EMPTY_PROPOSAL", out["code"])

	status, _ = call(t, r, http.MethodPost, "/api/v1/slot-proposals/not-a-uuid/send", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
