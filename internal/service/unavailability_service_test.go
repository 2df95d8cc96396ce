package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// fakeWindows is an in-memory unavailabilityStore.
type fakeWindows struct {
	windows map[string]*models.StaffUnavailability
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{windows: map[string]*models.StaffUnavailability{}}
}

func (f *fakeWindows) Create(_ context.Context, _ sqlx.ExtContext, u *models.StaffUnavailability) error {
	clone := *u
	f.windows[u.ID] = &clone
	return nil
}

func (f *fakeWindows) FindByID(_ context.Context, id string) (*models.StaffUnavailability, error) {
	w, ok := f.windows[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	clone := *w
	return &clone, nil
}

func (f *fakeWindows) ListByStaff(_ context.Context, sessionID, staffID string) ([]models.StaffUnavailability, error) {
	out := []models.StaffUnavailability{}
	for _, w := range f.windows {
		if w.SessionID == sessionID && w.StaffID == staffID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeWindows) Delete(_ context.Context, id string) error {
	if _, ok := f.windows[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(f.windows, id)
	return nil
}

type unavailabilityFixture struct {
	service *UnavailabilityService
	entries *memoryStore
	slots   *fakeExtraSlots
	windows *fakeWindows
	effects *recordingEffects
}

func newUnavailabilityFixture(t *testing.T) *unavailabilityFixture {
	t.Helper()
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	entries := newMemoryStore()
	slots := newFakeExtraSlots()
	windows := newFakeWindows()
	effects := &recordingEffects{}
	staff := &fakeCourseStaff{byCourse: map[string][]models.Staff{
		testCourse: {{ID: testStaff}, {ID: "staff-9"}},
	}}
	service := NewUnavailabilityService(db, windows, entries, slots, staff, nopCache{}, effects, zap.NewNop())
	return &unavailabilityFixture{service: service, entries: entries, slots: slots, windows: windows, effects: effects}
}

func (f *unavailabilityFixture) addClass(id string, day slot.Day, period, duration int) {
	entry := &models.TimetableEntry{
		ID: id, SessionID: testSession, CourseID: testCourse, SectionID: strPtr("sec-a"),
		SubjectID: "subj-1", StaffID: testStaff, RoomID: testRoom,
		Day: day, Period: period, Duration: duration,
	}
	if err := f.entries.Create(context.Background(), nil, entry); err != nil {
		panic(err)
	}
}

func recordRequest(day string, period, duration int) dto.RecordUnavailabilityRequest {
	return dto.RecordUnavailabilityRequest{
		SessionID: testSession,
		StaffID:   testStaff,
		Day:       day,
		Period:    period,
		Duration:  duration,
		Reason:    "medical leave",
	}
}

func TestRecordPublishesCoveredSlots(t *testing.T) {
	f := newUnavailabilityFixture(t)
	f.addClass("entry-1", slot.Monday, 1, 1)
	f.addClass("entry-2", slot.Monday, 2, 2) // spans periods 2..3
	f.addClass("entry-3", slot.Monday, 5, 1) // outside the window
	f.addClass("entry-4", slot.Tuesday, 1, 1)

	resp, err := f.service.Record(context.Background(), nil, recordRequest("Mon", 1, 3))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.PublishedSlots)
	assert.True(t, resp.Unavailability.RecurringWeekly, "weekly recurrence is the default")

	open, err := f.slots.ListOpenByCourse(context.Background(), testSession, testCourse, nil)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, s := range open {
		assert.NotNil(t, s.CreatedFrom)
	}

	// The covered classes stay on the grid until someone claims the slots.
	assert.Len(t, f.entries.all(), 4)
	assert.Contains(t, f.effects.actions(), models.AuditActionUnavailable)
}

func TestRecordOverlappingWindowDoesNotDuplicateSlots(t *testing.T) {
	f := newUnavailabilityFixture(t)
	f.addClass("entry-1", slot.Monday, 2, 1)

	first, err := f.service.Record(context.Background(), nil, recordRequest("Mon", 1, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, first.PublishedSlots)

	second, err := f.service.Record(context.Background(), nil, recordRequest("Mon", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, second.PublishedSlots)

	open, err := f.slots.ListOpenByCourse(context.Background(), testSession, testCourse, nil)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Len(t, f.windows.windows, 2, "both windows are stored")
}

func TestRecordNotifiesOtherCourseStaff(t *testing.T) {
	f := newUnavailabilityFixture(t)
	f.addClass("entry-1", slot.Monday, 1, 1)

	_, err := f.service.Record(context.Background(), nil, recordRequest("Mon", 1, 1))
	require.NoError(t, err)

	// The absentee gets a confirmation; colleagues in the course hear about
	// the claimable slot.
	notified := f.effects.notified()
	assert.Contains(t, notified, testStaff)
	assert.Contains(t, notified, "staff-9")
}

func TestRecordWithoutCoveredClassesStaysQuiet(t *testing.T) {
	f := newUnavailabilityFixture(t)

	_, err := f.service.Record(context.Background(), nil, recordRequest("Fri", 2, 1))
	require.NoError(t, err)

	// Nothing was republished, so only the absentee hears about it.
	assert.Equal(t, []string{testStaff}, f.effects.notified())
}

func TestRecordRejectsMalformedWindows(t *testing.T) {
	f := newUnavailabilityFixture(t)

	_, err := f.service.Record(context.Background(), nil, recordRequest("Sunday", 1, 1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.service.Record(context.Background(), nil, recordRequest("Fri", 6, 2))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteWindow(t *testing.T) {
	f := newUnavailabilityFixture(t)

	resp, err := f.service.Record(context.Background(), nil, recordRequest("Thu", 4, 1))
	require.NoError(t, err)

	windows, err := f.service.ListByStaff(context.Background(), testSession, testStaff)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	require.NoError(t, f.service.Delete(context.Background(), resp.Unavailability.ID))
	assert.True(t, errors.Is(f.service.Delete(context.Background(), resp.Unavailability.ID), appErrors.ErrNotFound))
}
