package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

const (
	testSession = "sess-1"
	testCourse  = "course-1"
	testRoom    = "room-1"
	testStaff   = "staff-1"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func testSubject() *models.Subject {
	return &models.Subject{
		ID:      "subj-1",
		Name:    "Mathematics",
		StaffID: testStaff,
		Credits: 3,
		IsLab:   boolPtr(false),
	}
}

func testLabSubject() *models.Subject {
	return &models.Subject{
		ID:      "subj-lab",
		Name:    "Physics Lab",
		StaffID: "staff-2",
		Credits: 2,
		IsLab:   boolPtr(true),
	}
}

func testEntry(subject *models.Subject) *models.TimetableEntry {
	return &models.TimetableEntry{
		ID:        "entry-new",
		SessionID: testSession,
		CourseID:  testCourse,
		SectionID: strPtr("sec-a"),
		SubjectID: subject.ID,
		StaffID:   subject.StaffID,
		RoomID:    testRoom,
		Day:       slot.Monday,
		Period:    1,
		Duration:  subject.Duration(),
		IsLab:     subject.Lab(),
	}
}

func newTestValidator(entries *memoryStore, offerings *fakeOfferings, absences *fakeAbsences) *PlacementValidator {
	rng := rand.New(rand.NewSource(42))
	rooms := &fakeRooms{rooms: []models.Room{{ID: testRoom}, {ID: "room-2"}}}
	suggester := NewSlotSuggester(entries, absences, rooms, rng, 3, zap.NewNop())
	return NewPlacementValidator(entries, offerings, absences, suggester)
}

func conflictReason(t *testing.T, err error) *models.PlacementConflictError {
	t.Helper()
	var conflict *models.PlacementConflictError
	require.True(t, errors.As(err, &conflict), "expected a placement conflict, got %v", err)
	return conflict
}

func TestValidateAcceptsCleanPlacement(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	err := v.Validate(context.Background(), nil, testEntry(subject), subject, models.PlacementNormal, "")
	assert.NoError(t, err)
}

func TestValidateRelationalChecks(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, "other-course")
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	t.Run("subject not offered in course", func(t *testing.T) {
		err := v.Validate(context.Background(), nil, testEntry(subject), subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonSubjectCourseMismatch, conflictReason(t, err).Reason)
	})

	t.Run("subject scoped to another section", func(t *testing.T) {
		offerings.offer(subject.ID, testCourse, "sec-b")
		err := v.Validate(context.Background(), nil, testEntry(subject), subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonSubjectSectionMismatch, conflictReason(t, err).Reason)
	})

	t.Run("wrong staff member", func(t *testing.T) {
		offerings.offer(subject.ID, testCourse, "sec-a")
		entry := testEntry(subject)
		entry.StaffID = "impostor"
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonStaffMismatch, conflictReason(t, err).Reason)
	})
}

func TestValidateShapeChecks(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	lab := testLabSubject()
	offerings.offer(subject.ID, testCourse)
	offerings.offer(lab.ID, testCourse)
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	t.Run("period off the grid", func(t *testing.T) {
		entry := testEntry(subject)
		entry.Period = 7
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonBadPeriod, conflictReason(t, err).Reason)
	})

	t.Run("impossible duration", func(t *testing.T) {
		entry := testEntry(subject)
		entry.Duration = 0
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonBadDuration, conflictReason(t, err).Reason)
	})

	t.Run("long span accepted when it fits the day", func(t *testing.T) {
		entry := testEntry(subject)
		entry.Duration = 3
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.NoError(t, err)
	})

	t.Run("lab in a single period", func(t *testing.T) {
		entry := testEntry(lab)
		entry.Duration = 1
		err := v.Validate(context.Background(), nil, entry, lab, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonLabDuration, conflictReason(t, err).Reason)
	})

	t.Run("lab overflowing the day", func(t *testing.T) {
		entry := testEntry(lab)
		entry.Duration = 2
		entry.Period = slot.MaxPeriod
		err := v.Validate(context.Background(), nil, entry, lab, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonSpanOverflow, conflictReason(t, err).Reason)
	})
}

func TestValidateUnavailabilityWithSuggestions(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)
	absences := &fakeAbsences{windows: []models.StaffUnavailability{{
		ID:              "win-1",
		SessionID:       testSession,
		StaffID:         testStaff,
		Day:             slot.Monday,
		Period:          1,
		Duration:        2,
		RecurringWeekly: true,
	}}}
	v := newTestValidator(entries, offerings, absences)

	err := v.Validate(context.Background(), nil, testEntry(subject), subject, models.PlacementNormal, "")
	conflict := conflictReason(t, err)
	assert.Equal(t, models.ReasonUnavailable, conflict.Reason)
	require.NotEmpty(t, conflict.Suggestions)
	for _, s := range conflict.Suggestions {
		if s.Day == slot.Monday {
			assert.Greater(t, s.Period, 2, "suggestion must avoid the absence window")
		}
	}
}

func TestValidateResourceConflicts(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	other := &models.Subject{ID: "subj-2", Name: "History", StaffID: testStaff, Credits: 3, IsLab: boolPtr(false)}
	offerings.offer(subject.ID, testCourse)
	offerings.offer(other.ID, testCourse)
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	// Same teacher already booked for section B at Monday P1.
	require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
		ID: "entry-b", SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-b"),
		SubjectID: other.ID, StaffID: testStaff, RoomID: "room-2",
		Day: slot.Monday, Period: 1, Duration: 1,
	}))

	t.Run("staff double booked across sections", func(t *testing.T) {
		err := v.Validate(context.Background(), nil, testEntry(subject), subject, models.PlacementNormal, "")
		conflict := conflictReason(t, err)
		assert.Equal(t, models.ReasonStaffConflict, conflict.Reason)
		assert.NotEmpty(t, conflict.Suggestions)
	})

	t.Run("room occupied", func(t *testing.T) {
		lab := testLabSubject()
		offerings.offer(lab.ID, testCourse)
		entry := testEntry(lab)
		entry.SectionID = strPtr("sec-a")
		entry.RoomID = "room-2"
		err := v.Validate(context.Background(), nil, entry, lab, models.PlacementNormal, "")
		conflict := conflictReason(t, err)
		assert.Equal(t, models.ReasonRoomConflict, conflict.Reason)
		assert.NotEmpty(t, conflict.Suggestions)
	})

	t.Run("course-wide entry blocks the section", func(t *testing.T) {
		require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
			ID: "entry-wide", SessionID: testSession, CourseID: testCourse, SectionID: nil,
			SubjectID: "subj-3", StaffID: "staff-3", RoomID: "room-3",
			Day: slot.Tuesday, Period: 2, Duration: 1,
		}))
		entry := testEntry(subject)
		entry.Day = slot.Tuesday
		entry.Period = 2
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		conflict := conflictReason(t, err)
		assert.Equal(t, models.ReasonSectionConflict, conflict.Reason)
		assert.NotEmpty(t, conflict.Suggestions)
	})
}

func TestValidateDayShapeAndQuota(t *testing.T) {
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)

	t.Run("one meeting per day", func(t *testing.T) {
		entries := newMemoryStore()
		v := newTestValidator(entries, offerings, &fakeAbsences{})
		require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
			ID: "entry-1", SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-a"),
			SubjectID: subject.ID, StaffID: testStaff, RoomID: testRoom,
			Day: slot.Monday, Period: 1, Duration: 1,
		}))
		entry := testEntry(subject)
		entry.Period = 4
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonOnePerDay, conflictReason(t, err).Reason)
	})

	t.Run("back to back across sections", func(t *testing.T) {
		entries := newMemoryStore()
		v := newTestValidator(entries, offerings, &fakeAbsences{})
		// Same subject taught to section B in the neighbouring period by a
		// second teacher would still be back-to-back for the course.
		require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
			ID: "entry-secb", SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-b"),
			SubjectID: subject.ID, StaffID: "staff-9", RoomID: "room-9",
			Day: slot.Monday, Period: 2, Duration: 1,
		}))
		entry := testEntry(subject)
		entry.Period = 1
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonAdjacency, conflictReason(t, err).Reason)
	})

	t.Run("zero credits carries no quota", func(t *testing.T) {
		entries := newMemoryStore()
		elective := &models.Subject{ID: "subj-free", Name: "Study Hall", StaffID: testStaff, Credits: 0, IsLab: boolPtr(false)}
		offerings.offer(elective.ID, testCourse)
		v := newTestValidator(entries, offerings, &fakeAbsences{})
		entry := testEntry(elective)
		err := v.Validate(context.Background(), nil, entry, elective, models.PlacementNormal, "")
		assert.NoError(t, err)
	})

	t.Run("weekly quota exhausted", func(t *testing.T) {
		entries := newMemoryStore()
		v := newTestValidator(entries, offerings, &fakeAbsences{})
		days := []slot.Day{slot.Monday, slot.Tuesday, slot.Wednesday}
		for i, day := range days {
			require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
				ID: "entry-" + string(day), SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-a"),
				SubjectID: subject.ID, StaffID: testStaff, RoomID: testRoom,
				Day: day, Period: i + 1, Duration: 1,
			}))
		}
		entry := testEntry(subject)
		entry.Day = slot.Thursday
		entry.Period = 5
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementNormal, "")
		assert.Equal(t, models.ReasonQuotaExceeded, conflictReason(t, err).Reason)
	})
}

func TestValidateExtraFillWaivesDayShapeAndQuota(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	// Quota filled and the subject already meets on Thursday.
	for i, day := range []slot.Day{slot.Monday, slot.Tuesday, slot.Thursday} {
		require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
			ID: "entry-" + string(day), SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-a"),
			SubjectID: subject.ID, StaffID: testStaff, RoomID: testRoom,
			Day: day, Period: i + 1, Duration: 1,
		}))
	}

	entry := testEntry(subject)
	entry.Day = slot.Thursday
	entry.Period = 5
	err := v.Validate(context.Background(), nil, entry, subject, models.PlacementExtraFill, "")
	assert.NoError(t, err)

	t.Run("staff exclusivity still enforced", func(t *testing.T) {
		entry := testEntry(subject)
		entry.Day = slot.Monday
		entry.Period = 1
		err := v.Validate(context.Background(), nil, entry, subject, models.PlacementExtraFill, "")
		assert.Equal(t, models.ReasonStaffConflict, conflictReason(t, err).Reason)
	})
}

func TestValidateExcludesRescheduledEntry(t *testing.T) {
	entries := newMemoryStore()
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)
	v := newTestValidator(entries, offerings, &fakeAbsences{})

	require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
		ID: "entry-move", SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-a"),
		SubjectID: subject.ID, StaffID: testStaff, RoomID: testRoom,
		Day: slot.Monday, Period: 1, Duration: 1,
	}))

	// Moving the entry one period later collides only with itself.
	moved := testEntry(subject)
	moved.ID = "entry-move"
	moved.Period = 2
	assert.NoError(t, v.Validate(context.Background(), nil, moved, subject, models.PlacementNormal, "entry-move"))

	// Without the exclusion the same move is a one-per-day violation.
	err := v.Validate(context.Background(), nil, moved, subject, models.PlacementNormal, "")
	assert.Error(t, err)
}

func TestSuggesterDeterministicForSeed(t *testing.T) {
	offerings := newFakeOfferings()
	subject := testSubject()
	offerings.offer(subject.ID, testCourse)

	suggest := func() []models.SlotSuggestion {
		entries := newMemoryStore()
		rng := rand.New(rand.NewSource(7))
		rooms := &fakeRooms{rooms: []models.Room{{ID: testRoom}}}
		s := NewSlotSuggester(entries, &fakeAbsences{}, rooms, rng, 4, zap.NewNop())
		return s.Suggest(context.Background(), nil, testEntry(subject))
	}

	first := suggest()
	second := suggest()
	require.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestSuggesterOffersSlotsInOtherRooms(t *testing.T) {
	entries := newMemoryStore()
	subject := testSubject()

	// The candidate's own room is booked solid all week by other courses, but
	// a second room sits empty. Every slot is still usable.
	days := []slot.Day{slot.Monday, slot.Tuesday, slot.Wednesday, slot.Thursday, slot.Friday}
	for _, day := range days {
		for p := slot.MinPeriod; p <= slot.MaxPeriod; p++ {
			require.NoError(t, entries.Create(context.Background(), nil, &models.TimetableEntry{
				ID:        fmt.Sprintf("busy-%s-%d", day, p),
				SessionID: testSession, CourseID: fmt.Sprintf("course-%s-%d", day, p),
				SubjectID: "subj-other", StaffID: fmt.Sprintf("staff-%s-%d", day, p),
				RoomID: testRoom, Day: day, Period: p, Duration: 1,
			}))
		}
	}

	rooms := &fakeRooms{rooms: []models.Room{{ID: testRoom}, {ID: "room-2"}}}
	rng := rand.New(rand.NewSource(7))
	s := NewSlotSuggester(entries, &fakeAbsences{}, rooms, rng, 4, zap.NewNop())
	got := s.Suggest(context.Background(), nil, testEntry(subject))
	assert.Len(t, got, 4)
}
