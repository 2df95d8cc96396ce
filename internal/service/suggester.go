package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

// SlotSuggester searches the week for alternative slots when a placement is
// rejected for a resource conflict. The search order is shuffled by an
// injected seeded source so suggestions vary between calls yet replay
// identically for a fixed seed.
type SlotSuggester struct {
	entries  placementStore
	absences absenceStore
	rooms    roomStore
	limit    int
	logger   *zap.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSlotSuggester(entries placementStore, absences absenceStore, rooms roomStore, rng *rand.Rand, limit int, logger *zap.Logger) *SlotSuggester {
	if limit <= 0 {
		limit = 5
	}
	return &SlotSuggester{
		entries:  entries,
		absences: absences,
		rooms:    rooms,
		limit:    limit,
		logger:   logger,
		now:      time.Now,
		rng:      rng,
	}
}

// Suggest returns up to the configured number of free slots where the same
// class could be placed instead: staff free, audience free, no absence
// window in the way, and at least one room free across the span. Best
// effort; lookup errors end the search with whatever was found so the
// caller's rejection still goes out.
func (s *SlotSuggester) Suggest(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) []models.SlotSuggestion {
	type candidate struct {
		day    slot.Day
		period int
	}

	candidates := make([]candidate, 0, len(slot.Days)*slot.PeriodsPerDay)
	for _, day := range slot.Days {
		for p := slot.MinPeriod; p <= slot.MaxStart(entry.Duration); p++ {
			candidates = append(candidates, candidate{day: day, period: p})
		}
	}
	s.mu.Lock()
	s.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.mu.Unlock()

	suggestions := make([]models.SlotSuggestion, 0, s.limit)
	for _, c := range candidates {
		if len(suggestions) == s.limit {
			break
		}
		free, err := s.free(ctx, exec, entry, c.day, c.period)
		if err != nil {
			s.logger.Sugar().Warnw("suggestion search aborted", "error", err)
			break
		}
		if free {
			suggestions = append(suggestions, models.SlotSuggestion{Day: c.day, Period: c.period})
		}
	}
	return suggestions
}

func (s *SlotSuggester) free(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, day slot.Day, period int) (bool, error) {
	windows, err := s.absences.ListForStaffDay(ctx, exec, entry.SessionID, entry.StaffID, day)
	if err != nil {
		return false, err
	}
	occurrence := models.NextOccurrence(day, s.now())
	span := slot.Span(period, entry.Duration)
	for _, w := range windows {
		if !w.AppliesOn(occurrence) {
			continue
		}
		for _, p := range span {
			if w.Covers(p) {
				return false, nil
			}
		}
	}

	for _, p := range span {
		if busy, err := s.entries.ExistsStaffAt(ctx, exec, entry.SessionID, day, p, entry.StaffID, entry.ID); err != nil || busy {
			return false, err
		}
		if busy, err := s.entries.ExistsScopeAt(ctx, exec, entry.SessionID, day, p, entry.CourseID, entry.SectionID, entry.ID); err != nil || busy {
			return false, err
		}
	}

	// Any room will do; the candidate's own room being busy must not
	// suppress the slot.
	list, err := s.rooms.List(ctx)
	if err != nil {
		return false, err
	}
	rooms := append([]models.Room(nil), list...)
	s.mu.Lock()
	s.rng.Shuffle(len(rooms), func(i, j int) {
		rooms[i], rooms[j] = rooms[j], rooms[i]
	})
	s.mu.Unlock()
	for _, room := range rooms {
		roomFree := true
		for _, p := range span {
			busy, err := s.entries.ExistsRoomAt(ctx, exec, entry.SessionID, day, p, room.ID, entry.ID)
			if err != nil {
				return false, err
			}
			if busy {
				roomFree = false
				break
			}
		}
		if roomFree {
			return true, nil
		}
	}
	return false, nil
}
