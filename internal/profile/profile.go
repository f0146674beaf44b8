// Package profile persists the single user profile record of a client.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/textbook-tutor/internal/domain"
	"github.com/ashureev/textbook-tutor/internal/store"
)

// Key is the fixed slot the profile record lives under.
const Key = "user_profile"

// Store reads and writes the profile slot of a key-value store.
// Last write wins; there is no versioning or merge.
type Store struct {
	kv     store.KeyValue
	logger *slog.Logger
}

// NewStore creates a profile store over kv.
func NewStore(kv store.KeyValue, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted profile. Read failures and malformed records
// are reported as an absent profile.
func (s *Store) Load(ctx context.Context) (*domain.UserProfile, bool) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.logger.Warn("failed to read profile", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Debug("ignoring malformed profile record", "error", err)
		return nil, false
	}
	if !p.Valid() {
		s.logger.Debug("ignoring profile record without name")
		return nil, false
	}
	return &p, true
}

// Save overwrites the persisted profile.
func (s *Store) Save(ctx context.Context, p domain.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.kv.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
