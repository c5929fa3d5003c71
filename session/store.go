// Package session persists chat conversations between turns.
package session

import (
	"context"
	"errors"

	"clausecheck-backend/models"
)

// ErrNotFound is returned when a session does not exist or has expired
var ErrNotFound = errors.New("session not found")

// Store loads and saves conversations by session id
type Store interface {
	Load(ctx context.Context, sessionID string) (*models.Conversation, error)
	Save(ctx context.Context, conv *models.Conversation) error
	Delete(ctx context.Context, sessionID string) error
}
