package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

const (
	sessionKeyPrefix = "wb:session:" // Session record: wb:session:{session_id}
	siteSetPrefix    = "wb:site:"    // Set of session IDs for a site: wb:site:{site_url}:sessions
	siteSetTTL       = 7 * 24 * time.Hour
)

// SessionRepository handles Redis operations for review sessions
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Put writes the whole session record with a store-level expiry
func (r *SessionRepository) Put(ctx context.Context, session *domain.ReviewSession, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session %s: non-positive store ttl %s", session.ID, ttl)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
	if session.SiteURL != "" {
		siteKey := r.siteSetKey(session.SiteURL)
		pipe.SAdd(ctx, siteKey, session.ID)
		pipe.Expire(ctx, siteKey, siteSetTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}
	return nil
}

// Get retrieves a session by its ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.ReviewSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.ReviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListBySite returns the IDs of sessions still stored for a site, sorted.
// IDs whose records have been evicted are pruned from the index.
func (r *SessionRepository) ListBySite(ctx context.Context, siteURL string) ([]string, error) {
	siteKey := r.siteSetKey(siteURL)

	ids, err := r.client.SMembers(ctx, siteKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for site: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	counts := make([]*redis.IntCmd, len(keys))
	pipe := r.client.Pipeline()
	for i, k := range keys {
		counts[i] = pipe.Exists(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check sessions for site: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []interface{}
	for i, id := range ids {
		if counts[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, siteKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune site index: %w", err)
		}
	}

	sort.Strings(live)
	return live, nil
}

func (r *SessionRepository) sessionKey(id string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, id)
}

func (r *SessionRepository) siteSetKey(siteURL string) string {
	return fmt.Sprintf("%s%s:sessions", siteSetPrefix, siteURL)
}
