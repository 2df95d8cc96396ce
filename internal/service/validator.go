package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

// placementStore is the occupancy view the validator checks candidates
// against. All methods run on the caller's transaction so the decision and
// the insert see the same snapshot.
type placementStore interface {
	ExistsStaffAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, staffID, excludeID string) (bool, error)
	ExistsRoomAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, roomID, excludeID string) (bool, error)
	ExistsScopeAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, courseID string, sectionID *string, excludeID string) (bool, error)
	ExistsSubjectOnDay(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, subjectID, courseID string, sectionID *string, excludeID string) (bool, error)
	ExistsSubjectAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, subjectID, courseID, excludeID string) (bool, error)
	CountForSubjectScope(ctx context.Context, exec sqlx.ExtContext, sessionID, subjectID, courseID string, sectionID *string, excludeID string) (int, error)
}

// offeringStore answers whether a subject may be placed for an audience.
type offeringStore interface {
	OfferedInCourse(ctx context.Context, exec sqlx.ExtContext, subjectID, courseID string) (bool, error)
	SectionScoped(ctx context.Context, exec sqlx.ExtContext, subjectID string) (bool, error)
	OfferedToSection(ctx context.Context, exec sqlx.ExtContext, subjectID, sectionID string) (bool, error)
}

// absenceStore lists declared staff absences for a weekday.
type absenceStore interface {
	ListForStaffDay(ctx context.Context, exec sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.StaffUnavailability, error)
}

// PlacementValidator runs a candidate entry through the conflict rules in a
// fixed order and reports the first violation. A nil return means the
// candidate may be committed on the same transaction.
type PlacementValidator struct {
	entries   placementStore
	offerings offeringStore
	absences  absenceStore
	suggester *SlotSuggester
	now       func() time.Time
}

func NewPlacementValidator(entries placementStore, offerings offeringStore, absences absenceStore, suggester *SlotSuggester) *PlacementValidator {
	return &PlacementValidator{
		entries:   entries,
		offerings: offerings,
		absences:  absences,
		suggester: suggester,
		now:       time.Now,
	}
}

// Validate checks the candidate against the rule set for the given mode.
// excludeID names an entry whose occupancy is ignored: the entry being
// rescheduled on update, or the covered entry when an extra slot is claimed.
// Rules run in order and the first violation wins.
func (v *PlacementValidator) Validate(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, subject *models.Subject, mode models.PlacementMode, excludeID string) error {
	if err := v.checkRelations(ctx, exec, entry, subject); err != nil {
		return err
	}
	if err := v.checkShape(entry, subject); err != nil {
		return err
	}
	if err := v.checkAbsences(ctx, exec, entry); err != nil {
		return err
	}
	if err := v.checkStaff(ctx, exec, entry, excludeID); err != nil {
		return err
	}
	if err := v.checkRoom(ctx, exec, entry, excludeID); err != nil {
		return err
	}
	if mode == models.PlacementExtraFill {
		// A claimed extra slot was vacated by the covered class, so the
		// audience is free and the day-shape and quota rules are waived on
		// purpose: a make-up class may double a subject's day or exceed its
		// weekly quota.
		return nil
	}
	if err := v.checkScope(ctx, exec, entry, excludeID); err != nil {
		return err
	}
	if err := v.checkDayShape(ctx, exec, entry, excludeID); err != nil {
		return err
	}
	return v.checkQuota(ctx, exec, entry, subject, excludeID)
}

func (v *PlacementValidator) checkRelations(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, subject *models.Subject) error {
	offered, err := v.offerings.OfferedInCourse(ctx, exec, entry.SubjectID, entry.CourseID)
	if err != nil {
		return err
	}
	if !offered {
		return models.NewConflict(models.ReasonSubjectCourseMismatch,
			"subject %s is not offered in course %s", subject.Name, entry.CourseID)
	}
	if entry.SectionID != nil {
		scoped, err := v.offerings.SectionScoped(ctx, exec, entry.SubjectID)
		if err != nil {
			return err
		}
		if scoped {
			offered, err := v.offerings.OfferedToSection(ctx, exec, entry.SubjectID, *entry.SectionID)
			if err != nil {
				return err
			}
			if !offered {
				return models.NewConflict(models.ReasonSubjectSectionMismatch,
					"subject %s is not offered to this section", subject.Name)
			}
		}
	}
	if entry.StaffID != subject.StaffID {
		return models.NewConflict(models.ReasonStaffMismatch,
			"subject %s is taught by a different staff member", subject.Name)
	}
	return nil
}

func (v *PlacementValidator) checkShape(entry *models.TimetableEntry, subject *models.Subject) error {
	if !slot.ValidPeriod(entry.Period) {
		return models.NewConflict(models.ReasonBadPeriod,
			"period %d is outside the teaching day (%d-%d)", entry.Period, slot.MinPeriod, slot.MaxPeriod)
	}
	if entry.Duration < 1 {
		return models.NewConflict(models.ReasonBadDuration,
			"duration of %d periods is not allowed", entry.Duration)
	}
	if subject.Lab() && entry.Duration != 2 {
		return models.NewConflict(models.ReasonLabDuration,
			"lab subject %s requires a two-period block", subject.Name)
	}
	if !slot.Fits(entry.Period, entry.Duration) {
		return models.NewConflict(models.ReasonSpanOverflow,
			"a %d-period class starting at period %d runs past the end of the day", entry.Duration, entry.Period)
	}
	return nil
}

func (v *PlacementValidator) checkAbsences(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	windows, err := v.absences.ListForStaffDay(ctx, exec, entry.SessionID, entry.StaffID, entry.Day)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return nil
	}
	occurrence := models.NextOccurrence(entry.Day, v.now())
	for _, w := range windows {
		if !w.AppliesOn(occurrence) {
			continue
		}
		for _, p := range entry.Span() {
			if w.Covers(p) {
				conflict := models.NewConflict(models.ReasonUnavailable,
					"staff member is unavailable on %s period %d", entry.Day, p)
				conflict.Suggestions = v.suggester.Suggest(ctx, exec, entry)
				return conflict
			}
		}
	}
	return nil
}

func (v *PlacementValidator) checkStaff(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, excludeID string) error {
	for _, p := range entry.Span() {
		busy, err := v.entries.ExistsStaffAt(ctx, exec, entry.SessionID, entry.Day, p, entry.StaffID, excludeID)
		if err != nil {
			return err
		}
		if busy {
			conflict := models.NewConflict(models.ReasonStaffConflict,
				"staff member already teaches on %s period %d", entry.Day, p)
			conflict.Suggestions = v.suggester.Suggest(ctx, exec, entry)
			return conflict
		}
	}
	return nil
}

func (v *PlacementValidator) checkRoom(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, excludeID string) error {
	for _, p := range entry.Span() {
		busy, err := v.entries.ExistsRoomAt(ctx, exec, entry.SessionID, entry.Day, p, entry.RoomID, excludeID)
		if err != nil {
			return err
		}
		if busy {
			conflict := models.NewConflict(models.ReasonRoomConflict,
				"room is occupied on %s period %d", entry.Day, p)
			conflict.Suggestions = v.suggester.Suggest(ctx, exec, entry)
			return conflict
		}
	}
	return nil
}

func (v *PlacementValidator) checkScope(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, excludeID string) error {
	for _, p := range entry.Span() {
		busy, err := v.entries.ExistsScopeAt(ctx, exec, entry.SessionID, entry.Day, p, entry.CourseID, entry.SectionID, excludeID)
		if err != nil {
			return err
		}
		if busy {
			conflict := models.NewConflict(models.ReasonSectionConflict,
				"the class group already has a class on %s period %d", entry.Day, p)
			conflict.Suggestions = v.suggester.Suggest(ctx, exec, entry)
			return conflict
		}
	}
	return nil
}

func (v *PlacementValidator) checkDayShape(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, excludeID string) error {
	met, err := v.entries.ExistsSubjectOnDay(ctx, exec, entry.SessionID, entry.Day, entry.SubjectID, entry.CourseID, entry.SectionID, excludeID)
	if err != nil {
		return err
	}
	if met {
		return models.NewConflict(models.ReasonOnePerDay,
			"this subject already meets on %s", entry.Day)
	}
	for _, p := range slot.Adjacent(entry.Period, entry.Duration) {
		next, err := v.entries.ExistsSubjectAt(ctx, exec, entry.SessionID, entry.Day, p, entry.SubjectID, entry.CourseID, excludeID)
		if err != nil {
			return err
		}
		if next {
			return models.NewConflict(models.ReasonAdjacency,
				"this subject would run back-to-back on %s", entry.Day)
		}
	}
	return nil
}

func (v *PlacementValidator) checkQuota(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry, subject *models.Subject, excludeID string) error {
	// Zero-credit subjects carry no weekly quota.
	if subject.Credits == 0 {
		return nil
	}
	count, err := v.entries.CountForSubjectScope(ctx, exec, entry.SessionID, entry.SubjectID, entry.CourseID, entry.SectionID, excludeID)
	if err != nil {
		return err
	}
	if count >= subject.Credits {
		return models.NewConflict(models.ReasonQuotaExceeded,
			"subject %s already has its %d weekly classes", subject.Name, subject.Credits)
	}
	return nil
}
