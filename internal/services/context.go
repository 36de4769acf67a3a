package services

import "context"

type contextKey string

const (
	cameraIDKey  contextKey = "camera_id"
	eventIDKey   contextKey = "event_id"
	requestIDKey contextKey = "request_id"
)

// WithCameraID annotates context with the camera identifier.
func WithCameraID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, cameraIDKey, id)
}

// CameraIDFromContext extracts the camera identifier if present.
func CameraIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(cameraIDKey).(int)
	return id, ok
}

// WithEventID annotates context with the motion event a recording serves.
func WithEventID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, eventIDKey, id)
}

// EventIDFromContext extracts the motion event id if present.
func EventIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(eventIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
