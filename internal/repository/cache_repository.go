package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// CacheRepository is a read-through cache for the hot read paths: open extra
// slot listings and weekly grids. A nil client disables caching; every
// method then reports a miss.
type CacheRepository struct {
	client  *redis.Client
	slotTTL time.Duration
	gridTTL time.Duration
}

func NewCacheRepository(client *redis.Client, slotTTL, gridTTL time.Duration) *CacheRepository {
	return &CacheRepository{client: client, slotTTL: slotTTL, gridTTL: gridTTL}
}

func scopeKey(sectionID *string) string {
	if sectionID == nil {
		return "all"
	}
	return *sectionID
}

func extraSlotKey(sessionID, courseID string, sectionID *string) string {
	return fmt.Sprintf("timetable:extra-slots:%s:%s:%s", sessionID, courseID, scopeKey(sectionID))
}

func gridKey(sessionID, courseID string, sectionID *string) string {
	return fmt.Sprintf("timetable:grid:%s:%s:%s", sessionID, courseID, scopeKey(sectionID))
}

func (r *CacheRepository) GetOpenSlots(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	payload, err := r.client.Get(ctx, extraSlotKey(sessionID, courseID, sectionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached extra slots: %w", err)
	}
	var slots []models.ExtraClassAvailability
	if err := json.Unmarshal(payload, &slots); err != nil {
		return nil, appErrors.ErrCacheMiss
	}
	return slots, nil
}

func (r *CacheRepository) SetOpenSlots(ctx context.Context, sessionID, courseID string, sectionID *string, slots []models.ExtraClassAvailability) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal extra slots: %w", err)
	}
	if err := r.client.Set(ctx, extraSlotKey(sessionID, courseID, sectionID), payload, r.slotTTL).Err(); err != nil {
		return fmt.Errorf("cache extra slots: %w", err)
	}
	return nil
}

func (r *CacheRepository) GetGrid(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	payload, err := r.client.Get(ctx, gridKey(sessionID, courseID, sectionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached grid: %w", err)
	}
	var entries []models.TimetableEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, appErrors.ErrCacheMiss
	}
	return entries, nil
}

func (r *CacheRepository) SetGrid(ctx context.Context, sessionID, courseID string, sectionID *string, entries []models.TimetableEntry) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal grid: %w", err)
	}
	if err := r.client.Set(ctx, gridKey(sessionID, courseID, sectionID), payload, r.gridTTL).Err(); err != nil {
		return fmt.Errorf("cache grid: %w", err)
	}
	return nil
}

// InvalidateCourse drops every cached view of a course after a write. Grid
// and slot keys are per section, so the section-agnostic pattern delete
// covers all of them.
func (r *CacheRepository) InvalidateCourse(ctx context.Context, sessionID, courseID string) error {
	if r.client == nil {
		return nil
	}
	patterns := []string{
		fmt.Sprintf("timetable:extra-slots:%s:%s:*", sessionID, courseID),
		fmt.Sprintf("timetable:grid:%s:%s:*", sessionID, courseID),
	}
	for _, pattern := range patterns {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("invalidate cache key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
	}
	return nil
}
