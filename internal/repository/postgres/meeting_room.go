package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
)

const roomColumns = `id, appointment_id, provider, meeting_code, join_url, external_name, status,
	started_at, ended_at, created_at, updated_at`

func (r *meetingRoomRepository) Create(ctx context.Context, room *model.MeetingRoom) error {
	query := `
		INSERT INTO meeting_rooms (
			id, appointment_id, provider, meeting_code, join_url, external_name, status,
			started_at, ended_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	room.Touch(time.Now().UTC())

	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.AppointmentID,
		room.Provider,
		room.MeetingCode,
		room.JoinURL,
		room.ExternalName,
		room.Status,
		room.StartedAt,
		room.EndedAt,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create meeting room: %w", translate(err))
	}
	return nil
}

func (r *meetingRoomRepository) Get(ctx context.Context, id uuid.UUID) (*model.MeetingRoom, error) {
	var room model.MeetingRoom
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM meeting_rooms WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get meeting room: %w", translate(err))
	}
	return &room, nil
}

func (r *meetingRoomRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MeetingRoom, error) {
	var room model.MeetingRoom
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM meeting_rooms WHERE appointment_id = $1`, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to get meeting room: %w", translate(err))
	}
	return &room, nil
}

func (r *meetingRoomRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RoomStatus, at time.Time) error {
	query := `
		UPDATE meeting_rooms
		SET status = $1,
			started_at = CASE WHEN $1 = 'active' THEN $2 ELSE started_at END,
			ended_at = CASE WHEN $1 = 'ended' THEN $2 ELSE ended_at END,
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("failed to update meeting room status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM meeting_rooms WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check meeting room: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleState
}
