package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

type roomStore interface {
	List(ctx context.Context) ([]models.Room, error)
}

// GeneratorService fills a session's timetable greedily: for every subject
// offering it keeps proposing randomized slots through the full validator
// until the subject's weekly quota is met or the candidate space is
// exhausted. Each accepted placement commits in its own transaction, so a
// failed candidate never rolls back earlier wins and reruns only top up what
// is missing.
type GeneratorService struct {
	db        txBeginner
	entries   entryStore
	subjects  subjectStore
	rooms     roomStore
	validator *PlacementValidator
	cache     gridCache
	effects   sideEffects
	metrics   *Metrics
	logger    *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGeneratorService(db txBeginner, entries entryStore, subjects subjectStore, rooms roomStore, validator *PlacementValidator, cache gridCache, effects sideEffects, metrics *Metrics, rng *rand.Rand, logger *zap.Logger) *GeneratorService {
	return &GeneratorService{
		db:        db,
		entries:   entries,
		subjects:  subjects,
		rooms:     rooms,
		validator: validator,
		cache:     cache,
		effects:   effects,
		metrics:   metrics,
		rng:       rng,
		logger:    logger,
	}
}

// Generate runs one pass over every schedulable subject offering.
func (g *GeneratorService) Generate(ctx context.Context, actorID *string, sessionID string) (*dto.GenerationSummary, error) {
	subjects, err := g.subjects.ListSchedulable(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := g.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, fmt.Errorf("generate timetable: no rooms available")
	}

	summary := &dto.GenerationSummary{}
	touched := map[string]struct{}{}

	for i := range subjects {
		subject := &subjects[i]
		offerings, err := g.subjects.ListOfferings(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		for _, offering := range offerings {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			created, err := g.fillOffering(ctx, sessionID, subject, offering, rooms, summary)
			if err != nil {
				return nil, err
			}
			if created {
				touched[offering.CourseID] = struct{}{}
			}
		}
	}

	for courseID := range touched {
		if err := g.cache.InvalidateCourse(ctx, sessionID, courseID); err != nil {
			g.logger.Sugar().Warnw("cache invalidation failed", "course_id", courseID, "error", err)
		}
	}
	g.effects.Audit(actorID, models.AuditActionGenerate, nil,
		fmt.Sprintf("generated timetable for session %s: %d created, %d skipped", sessionID, summary.Created, summary.Skipped))

	g.logger.Sugar().Infow("generation finished",
		"session_id", sessionID, "created", summary.Created, "skipped", summary.Skipped, "errors", len(summary.Errors))
	return summary, nil
}

func (g *GeneratorService) fillOffering(ctx context.Context, sessionID string, subject *models.Subject, offering models.SubjectOffering, rooms []models.Room, summary *dto.GenerationSummary) (bool, error) {
	count, err := g.entries.CountForSubjectScope(ctx, g.db, sessionID, subject.ID, offering.CourseID, offering.SectionID, "")
	if err != nil {
		return false, err
	}
	remaining := subject.Credits - count
	if remaining <= 0 {
		return false, nil
	}

	duration := subject.Duration()
	createdAny := false

	for _, c := range g.shuffledSlots(duration) {
		if remaining == 0 {
			break
		}
		// Cheap occupancy pre-checks before spending a transaction on the
		// full validator.
		busy, err := g.entries.ExistsStaffAt(ctx, g.db, sessionID, c.day, c.period, subject.StaffID, "")
		if err != nil {
			return createdAny, err
		}
		if !busy {
			busy, err = g.entries.ExistsScopeAt(ctx, g.db, sessionID, c.day, c.period, offering.CourseID, offering.SectionID, "")
			if err != nil {
				return createdAny, err
			}
		}
		if busy {
			summary.Skipped++
			g.metrics.GeneratorSkipped()
			continue
		}

		placed, rejection, err := g.placeAt(ctx, sessionID, subject, offering, rooms, c, duration)
		if err != nil {
			summary.Skipped++
			g.metrics.GeneratorSkipped()
			summary.Errors = append(summary.Errors, describeSkip(subject, offering, c, err))
			continue
		}
		if placed {
			remaining--
			summary.Created++
			createdAny = true
			g.metrics.GeneratorPlaced()
			continue
		}
		summary.Skipped++
		g.metrics.GeneratorSkipped()
		if rejection != nil {
			summary.Errors = append(summary.Errors, describeSkip(subject, offering, c, rejection))
		}
	}

	if remaining > 0 {
		g.logger.Sugar().Warnw("offering left short of quota",
			"subject", subject.Name, "course_id", offering.CourseID, "missing", remaining)
	}
	return createdAny, nil
}

// placeAt walks the rooms in shuffled order until one passes the full
// validator. A room conflict moves on to the next room; any other rejection
// is room-independent and abandons the slot.
func (g *GeneratorService) placeAt(ctx context.Context, sessionID string, subject *models.Subject, offering models.SubjectOffering, rooms []models.Room, c slotCandidate, duration int) (bool, *models.PlacementConflictError, error) {
	var rejection *models.PlacementConflictError
	for _, room := range g.shuffledRooms(rooms) {
		entry := &models.TimetableEntry{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			CourseID:  offering.CourseID,
			SectionID: offering.SectionID,
			SubjectID: subject.ID,
			StaffID:   subject.StaffID,
			RoomID:    room.ID,
			Day:       c.day,
			Period:    c.period,
			Duration:  duration,
			IsLab:     subject.Lab(),
		}
		conflict, err := g.tryPlace(ctx, entry, subject)
		if err != nil {
			return false, nil, err
		}
		if conflict == nil {
			return true, nil, nil
		}
		rejection = conflict
		if conflict.Reason != models.ReasonRoomConflict {
			break
		}
	}
	return false, rejection, nil
}

// tryPlace commits one candidate in its own transaction. Conflicts are an
// expected outcome of the search, not errors; they come back as the first
// return so the caller can account for the rejection.
func (g *GeneratorService) tryPlace(ctx context.Context, entry *models.TimetableEntry, subject *models.Subject) (*models.PlacementConflictError, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin generator tx: %w", err)
	}
	defer tx.Rollback()

	if err := g.validator.Validate(ctx, tx, entry, subject, models.PlacementNormal, ""); err != nil {
		var conflict *models.PlacementConflictError
		if errors.As(err, &conflict) {
			return conflict, nil
		}
		return nil, err
	}
	if err := g.entries.Create(ctx, tx, entry); err != nil {
		var conflict *models.PlacementConflictError
		if errors.As(err, &conflict) {
			return conflict, nil
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit generator placement: %w", err)
	}
	return nil, nil
}

func describeSkip(subject *models.Subject, offering models.SubjectOffering, c slotCandidate, cause error) string {
	scope := offering.CourseID
	if offering.SectionID != nil {
		scope = fmt.Sprintf("%s/%s", offering.CourseID, *offering.SectionID)
	}
	return fmt.Sprintf("%s (%s) on %s P%d: %v", subject.Name, scope, c.day, c.period, cause)
}

type slotCandidate struct {
	day    slot.Day
	period int
}

func (g *GeneratorService) shuffledSlots(duration int) []slotCandidate {
	candidates := make([]slotCandidate, 0, len(slot.Days)*slot.PeriodsPerDay)
	for _, day := range slot.Days {
		for p := slot.MinPeriod; p <= slot.MaxStart(duration); p++ {
			candidates = append(candidates, slotCandidate{day: day, period: p})
		}
	}
	g.mu.Lock()
	g.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	g.mu.Unlock()
	return candidates
}

func (g *GeneratorService) shuffledRooms(rooms []models.Room) []models.Room {
	shuffled := append([]models.Room(nil), rooms...)
	g.mu.Lock()
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	g.mu.Unlock()
	return shuffled
}
