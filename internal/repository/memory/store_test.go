package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
)

func at(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

func newAppointment(provider uuid.UUID, start, end time.Time) *model.Appointment {
	return &model.Appointment{
		ProviderID: provider,
		ClientID:   uuid.New(),
		StartTime:  start,
		EndTime:    end,
		Status:     model.AppointmentStatusPending,
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	provider := uuid.New()

	require.NoError(t, repos.Appointments.Create(ctx, newAppointment(provider, at(10, 0), at(10, 45))))

	err := repos.Appointments.Create(ctx, newAppointment(provider, at(10, 30), at(11, 15)))
	assert.ErrorIs(t, err, repository.ErrIntervalTaken)

	// adjacent is fine, as is another provider
	require.NoError(t, repos.Appointments.Create(ctx, newAppointment(provider, at(10, 45), at(11, 30))))
	require.NoError(t, repos.Appointments.Create(ctx, newAppointment(uuid.New(), at(10, 0), at(10, 45))))
}

func TestCancelFreesInterval(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	provider := uuid.New()

	first := newAppointment(provider, at(10, 0), at(10, 45))
	require.NoError(t, repos.Appointments.Create(ctx, first))
	require.NoError(t, repos.Appointments.UpdateStatus(ctx, first.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled))

	second := newAppointment(provider, at(10, 0), at(10, 45))
	require.NoError(t, repos.Appointments.Create(ctx, second))

	// the cancelled one cannot come back over the new booking
	err := repos.Appointments.UpdateStatus(ctx, first.ID, model.AppointmentStatusCancelled, model.AppointmentStatusPending)
	assert.ErrorIs(t, err, repository.ErrIntervalTaken)
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	a := newAppointment(uuid.New(), at(9, 0), at(9, 45))
	require.NoError(t, repos.Appointments.Create(ctx, a))

	err := repos.Appointments.UpdateStatus(ctx, a.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	err = repos.Appointments.UpdateStatus(ctx, uuid.New(), model.AppointmentStatusPending, model.AppointmentStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIdempotencyKeyUniquePerClient(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	provider := uuid.New()
	key := "attempt-1"

	a := newAppointment(provider, at(9, 0), at(9, 45))
	a.IdempotencyKey = &key
	require.NoError(t, repos.Appointments.Create(ctx, a))

	b := newAppointment(provider, at(11, 0), at(11, 45))
	b.ClientID = a.ClientID
	b.IdempotencyKey = &key
	assert.ErrorIs(t, repos.Appointments.Create(ctx, b), repository.ErrDuplicateIdempotencyKey)

	found, err := repos.Appointments.GetByIdempotencyKey(ctx, a.ClientID, key)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestAttachRoomRequiresRoomRow(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	a := newAppointment(uuid.New(), at(9, 0), at(9, 45))
	require.NoError(t, repos.Appointments.Create(ctx, a))

	assert.ErrorIs(t, repos.Appointments.AttachRoom(ctx, a.ID, uuid.New(), "https://x"), repository.ErrNotFound)

	room := &model.MeetingRoom{AppointmentID: a.ID, Provider: model.MeetingProviderFallbackLink, JoinURL: "https://meet.example/abc", Status: model.RoomStatusCreated}
	require.NoError(t, repos.Rooms.Create(ctx, room))
	assert.ErrorIs(t, repos.Rooms.Create(ctx, &model.MeetingRoom{AppointmentID: a.ID}), repository.ErrRoomExists)

	require.NoError(t, repos.Appointments.AttachRoom(ctx, a.ID, room.ID, room.JoinURL))
	got, err := repos.Appointments.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, *got.MeetingRoomID)
}

func TestProposalTransitions(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	p := &model.SlotProposal{ProviderID: uuid.New(), ClientID: uuid.New(), Status: model.ProposalStatusDraft}
	require.NoError(t, repos.Proposals.Create(ctx, p))

	sent := at(8, 0)
	require.NoError(t, repos.Proposals.MarkSent(ctx, p.ID, sent, sent.Add(48*time.Hour)))
	assert.ErrorIs(t, repos.Proposals.MarkSent(ctx, p.ID, sent, sent), repository.ErrStaleState)
	assert.ErrorIs(t, repos.Proposals.UpdateDraft(ctx, p), repository.ErrStaleState)

	expired, err := repos.Proposals.ListExpired(ctx, sent.Add(49*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, repos.Proposals.MarkExpired(ctx, p.ID))
	expired, err = repos.Proposals.ListExpired(ctx, sent.Add(49*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestOutboxProcessPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	for _, typ := range []string{"a", "b", "c"} {
		require.NoError(t, repos.Outbox.Create(ctx, &model.OutboxEvent{EventType: typ, Payload: []byte(`{}`)}))
	}

	n, err := repos.Outbox.ProcessPending(ctx, 2, func(_ context.Context, e *model.OutboxEvent) error {
		if e.EventType == "b" {
			return errors.New("broker down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := store.Outbox()
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.Equal(t, model.OutboxStatusFailed, events[1].Status)
	assert.Equal(t, "broker down", *events[1].ErrorMessage)
	assert.Equal(t, model.OutboxStatusPending, events[2].Status)

	deleted, err := repos.Outbox.DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.Outbox(), 2)
}

func TestOverlayListForDay(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	provider := uuid.New()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	store.PutBusy(model.ExternalBusyInterval{ProviderID: provider, StartRaw: "x", EndRaw: "y", StartsOn: day})
	store.PutBusy(model.ExternalBusyInterval{ProviderID: provider, StartsOn: day.AddDate(0, 0, -1)})
	store.PutBusy(model.ExternalBusyInterval{ProviderID: provider, StartsOn: day.AddDate(0, 0, 1)})
	store.PutBusy(model.ExternalBusyInterval{ProviderID: uuid.New(), StartsOn: day})

	got, err := store.Repositories().Overlay.ListForDay(ctx, provider, day)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
