package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const eventColumns = "id, camera_id, triggered_at, status, component_count, total_area, largest_area, threshold_area, pre_roll_frames"

// RecordMotionEvent stores a trigger. An empty ID is filled with a new UUID.
func (s *Store) RecordMotionEvent(ctx context.Context, event MotionEvent) (MotionEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = EventAccepted
	}
	if event.TriggeredAt.IsZero() {
		return MotionEvent{}, errors.New("events: trigger time required")
	}
	_, err := s.exec(ctx,
		`INSERT INTO motion_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.CameraID, formatTime(event.TriggeredAt), string(event.Status),
		event.ComponentCount, event.TotalArea, event.LargestArea, event.ThresholdArea, event.PreRollFrames,
	)
	if err != nil {
		return MotionEvent{}, fmt.Errorf("insert motion event: %w", err)
	}
	return event, nil
}

// ListMotionEvents returns the newest events first. A cameraID below zero
// matches every camera.
func (s *Store) ListMotionEvents(ctx context.Context, cameraID int, limit int) ([]MotionEvent, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + eventColumns + ` FROM motion_events`
	var args []any
	if cameraID >= 0 {
		query += ` WHERE camera_id = ?`
		args = append(args, cameraID)
	}
	query += ` ORDER BY triggered_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list motion events: %w", err)
	}
	defer rows.Close()

	var out []MotionEvent
	for rows.Next() {
		var (
			event     MotionEvent
			triggered sql.NullString
			status    string
		)
		if err := rows.Scan(&event.ID, &event.CameraID, &triggered, &status,
			&event.ComponentCount, &event.TotalArea, &event.LargestArea, &event.ThresholdArea, &event.PreRollFrames); err != nil {
			return nil, fmt.Errorf("scan motion event: %w", err)
		}
		event.TriggeredAt = parseTime(triggered)
		event.Status = EventStatus(strings.TrimSpace(status))
		out = append(out, event)
	}
	return out, rows.Err()
}
