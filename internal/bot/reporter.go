package bot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	mongorepo "github.com/danastri/meetscribe/internal/repositories/mongo"
)

// StatusReporter persists state transitions on the session record and mirrors
// them to the session's Redis status channel for live subscribers. Either
// sink may be nil.
type StatusReporter struct {
	Sessions mongorepo.BotSessionRepository
	Redis    *redis.Client
	Log      *logrus.Logger
}

func (r *StatusReporter) State(sessionID, state string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.Sessions != nil {
		if err := r.Sessions.SetState(ctx, sessionID, state); err != nil {
			r.warn(err, sessionID, "failed to persist bot state")
		}
	}
	r.publish(ctx, sessionID, map[string]any{
		"type":       "status",
		"session_id": sessionID,
		"state":      state,
	})
}

func (r *StatusReporter) Failure(sessionID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.Sessions != nil {
		if err := r.Sessions.SetError(ctx, sessionID, message); err != nil {
			r.warn(err, sessionID, "failed to persist bot error")
		}
	}
	r.publish(ctx, sessionID, map[string]any{
		"type":       "error",
		"session_id": sessionID,
		"message":    message,
	})
}

func (r *StatusReporter) publish(ctx context.Context, sessionID string, payload map[string]any) {
	if r.Redis == nil {
		return
	}
	b, _ := json.Marshal(payload)
	if err := r.Redis.Publish(ctx, "bot:"+sessionID+":status", string(b)).Err(); err != nil {
		r.warn(err, sessionID, "failed to publish bot status")
	}
}

func (r *StatusReporter) warn(err error, sessionID, msg string) {
	if r.Log == nil {
		return
	}
	r.Log.WithError(err).WithField("session_id", sessionID).Warn(msg)
}
