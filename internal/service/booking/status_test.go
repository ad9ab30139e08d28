package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduling-api/internal/model"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.AppointmentStatusPending, model.AppointmentStatusConfirmed))
	assert.True(t, CanTransition(model.AppointmentStatusPending, model.AppointmentStatusCancelled))
	assert.True(t, CanTransition(model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted))
	assert.False(t, CanTransition(model.AppointmentStatusPending, model.AppointmentStatusCompleted))
	assert.False(t, CanTransition(model.AppointmentStatusCancelled, model.AppointmentStatusConfirmed))
	assert.False(t, CanTransition(model.AppointmentStatusCompleted, model.AppointmentStatusCancelled))
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(uuid.New(), at(9, 0), at(9, 45))
	res, err := f.coord.Book(ctx, req)
	require.NoError(t, err)
	id := res.Appointment.ID
	provider := model.Principal{AccountID: req.ProviderID, Role: model.RoleProvider}

	_, err = f.coord.UpdateStatus(ctx, model.Principal{AccountID: uuid.New()}, id, model.AppointmentStatusConfirmed)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.coord.UpdateStatus(ctx, provider, uuid.New(), model.AppointmentStatusConfirmed)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	confirmed, err := f.coord.UpdateStatus(ctx, provider, id, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	_, err = f.coord.UpdateStatus(ctx, provider, id, model.AppointmentStatusCompleted)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	f.coord.WithClock(func() time.Time { return at(10, 0) })
	completed, err := f.coord.UpdateStatus(ctx, provider, id, model.AppointmentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)

	_, err = f.coord.UpdateStatus(ctx, provider, id, model.AppointmentStatusCancelled)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStatusTransition))
}

func TestConfirmCancelsProposalSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	client := uuid.New()
	proposalID := uuid.New()

	var ids []uuid.UUID
	for _, h := range []int{9, 11, 13} {
		res, err := f.coord.Book(ctx, Request{ProviderID: provider, ClientID: client, Start: at(h, 0), End: at(h, 45), ProposalID: &proposalID})
		require.NoError(t, err)
		ids = append(ids, res.Appointment.ID)
	}
	other, err := f.coord.Book(ctx, Request{ProviderID: provider, ClientID: client, Start: at(15, 0), End: at(15, 45)})
	require.NoError(t, err)

	_, err = f.coord.UpdateStatus(ctx, model.Principal{AccountID: client, Role: model.RoleClient}, ids[1], model.AppointmentStatusConfirmed)
	require.NoError(t, err)

	for i, id := range ids {
		a, err := f.repos.Appointments.Get(ctx, id)
		require.NoError(t, err)
		if i == 1 {
			assert.Equal(t, model.AppointmentStatusConfirmed, a.Status)
		} else {
			assert.Equal(t, model.AppointmentStatusCancelled, a.Status)
		}
	}
	untouched, err := f.repos.Appointments.Get(ctx, other.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, untouched.Status)
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	client := uuid.New()
	proposalID := uuid.New()

	var ids []uuid.UUID
	for _, h := range []int{9, 11} {
		res, err := f.coord.Book(ctx, Request{ProviderID: provider, ClientID: client, Start: at(h, 0), End: at(h, 45), ProposalID: &proposalID})
		require.NoError(t, err)
		ids = append(ids, res.Appointment.ID)
	}
	require.NoError(t, f.repos.Appointments.UpdateStatus(ctx, ids[0], model.AppointmentStatusPending, model.AppointmentStatusConfirmed))

	cancelled, err := f.coord.CancelPending(ctx, proposalID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ids[1]}, cancelled)
}

func TestProvisionRoomAfterDegradedBooking(t *testing.T) {
	rooms := &flakyRooms{}
	f := newFixture(t, withRooms(rooms))
	ctx := context.Background()
	req := request(uuid.New(), at(16, 0), at(16, 45))

	rooms.err = errors.New("vendor outage")
	res, err := f.coord.Book(ctx, req)
	require.NoError(t, err)
	require.False(t, res.RoomReady())

	rooms.err = nil
	rooms.store = f.repos.Rooms
	provider := model.Principal{AccountID: req.ProviderID, Role: model.RoleProvider}
	fixed, err := f.coord.ProvisionRoom(ctx, provider, res.Appointment.ID)
	require.NoError(t, err)
	assert.True(t, fixed.RoomReady())

	stored, err := f.repos.Appointments.Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed.Room.ID, *stored.MeetingRoomID)

	_, err = f.coord.ProvisionRoom(ctx, model.Principal{AccountID: uuid.New()}, res.Appointment.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestListReturnsOnlyCallersAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := request(uuid.New(), at(9, 0), at(9, 45))
	_, err := f.coord.Book(ctx, mine)
	require.NoError(t, err)
	_, err = f.coord.Book(ctx, request(uuid.New(), at(9, 0), at(9, 45)))
	require.NoError(t, err)

	list, err := f.coord.List(ctx, model.Principal{AccountID: mine.ClientID, Role: model.RoleClient}, model.AppointmentFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ClientID, list[0].ClientID)
}

type flakyRooms struct {
	err   error
	store interface {
		Create(ctx context.Context, room *model.MeetingRoom) error
	}
}

func (r *flakyRooms) Provision(ctx context.Context, appointmentID uuid.UUID, _ model.Principal) (*model.MeetingRoom, error) {
	if r.err != nil {
		return nil, r.err
	}
	room := &model.MeetingRoom{AppointmentID: appointmentID, Provider: model.MeetingProviderFallbackLink, JoinURL: "https://meet.example.com/abc", Status: model.RoomStatusCreated}
	if err := r.store.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}
