// Package session stores short-lived conversation state keyed by
// (customer, facility). Best-effort, last write wins: booking correctness
// never depends on it, only on the commit engine's lock.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/intent"
	"citabot/internal/models"
)

// DefaultTTL is how long an in-flight selection stays alive.
const DefaultTTL = 30 * time.Minute

// Store is a TTL-backed key-value store for conversation sessions.
// Get returns models.ErrSessionNotFound for absent keys and
// models.ErrSessionExpired for records past their TTL; stale data is
// never returned.
type Store interface {
	Put(ctx context.Context, session *models.ConversationSession, ttl time.Duration) error
	Get(ctx context.Context, key string) (*models.ConversationSession, error)
	Delete(ctx context.Context, key string) error
}

// upgrade fills defaults into sessions written by an older schema version.
// Old records are read, not rejected.
func upgrade(s *models.ConversationSession, logger *zerolog.Logger) {
	if s.Schema >= models.SessionSchemaVersion {
		return
	}
	if s.Language == "" {
		s.Language = intent.DefaultLanguage
	}
	logger.Info().Str("session_id", s.SessionID).Int("schema", s.Schema).
		Msg("upgraded session from older schema")
	s.Schema = models.SessionSchemaVersion
}
