package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

type timetableFixture struct {
	service  *TimetableService
	entries  *memoryStore
	subjects *fakeSubjects
	effects  *recordingEffects
	mock     sqlmock.Sqlmock
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	t.Helper()
	db, mock := newMockDB(t)

	entries := newMemoryStore()
	subjects := newFakeSubjects()
	offerings := newFakeOfferings()
	effects := &recordingEffects{}

	subject := testSubject()
	subjects.add(subject, models.SubjectOffering{SubjectID: subject.ID, CourseID: testCourse, SectionID: strPtr("sec-a")})
	offerings.offer(subject.ID, testCourse)

	validator := newTestValidator(entries, offerings, &fakeAbsences{})
	service := NewTimetableService(db, entries, subjects, validator, nopCache{}, effects, NewMetrics(), zap.NewNop())

	return &timetableFixture{service: service, entries: entries, subjects: subjects, effects: effects, mock: mock}
}

func createEntryRequest() dto.CreateEntryRequest {
	return dto.CreateEntryRequest{
		SessionID: testSession,
		CourseID:  testCourse,
		SectionID: strPtr("sec-a"),
		SubjectID: "subj-1",
		RoomID:    testRoom,
		Day:       "Mon",
		Period:    1,
	}
}

func TestCreateEntryCommitsAndNotifies(t *testing.T) {
	f := newTimetableFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	entry, err := f.service.CreateEntry(context.Background(), strPtr("admin-1"), createEntryRequest())
	require.NoError(t, err)

	assert.Equal(t, testStaff, entry.StaffID, "staff defaults to the subject's teacher")
	assert.Equal(t, 1, entry.Duration)
	assert.False(t, entry.IsLab)
	assert.Len(t, f.entries.all(), 1)
	assert.Contains(t, f.effects.actions(), models.AuditActionSchedule)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateEntryRollsBackOnConflict(t *testing.T) {
	f := newTimetableFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.service.CreateEntry(context.Background(), nil, createEntryRequest())
	require.NoError(t, err)

	// Same slot again: rejected inside the transaction, nothing committed.
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.service.CreateEntry(context.Background(), nil, createEntryRequest())

	var conflict *models.PlacementConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ReasonStaffConflict, conflict.Reason)
	assert.NotEmpty(t, conflict.Suggestions)
	assert.Len(t, f.entries.all(), 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateEntryRejectsUnknownDay(t *testing.T) {
	f := newTimetableFixture(t)
	req := createEntryRequest()
	req.Day = "Sun"

	_, err := f.service.CreateEntry(context.Background(), nil, req)
	assert.Error(t, err)
	assert.Empty(t, f.entries.all())
}

func TestUpdateEntryMovesWithinOwnSlot(t *testing.T) {
	f := newTimetableFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	entry, err := f.service.CreateEntry(context.Background(), nil, createEntryRequest())
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	day := "Mon"
	period := 2
	moved, err := f.service.UpdateEntry(context.Background(), nil, entry.ID, dto.UpdateEntryRequest{Day: &day, Period: &period})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Period)
	assert.Contains(t, f.effects.actions(), models.AuditActionUpdate)
}

func TestEraseScheduleReportsCount(t *testing.T) {
	f := newTimetableFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.service.CreateEntry(context.Background(), nil, createEntryRequest())
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	summary, err := f.service.EraseSchedule(context.Background(), nil, testSession)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Removed)
	assert.Empty(t, f.entries.all())
	assert.Contains(t, f.effects.actions(), models.AuditActionErase)
}

func TestCoverageFlagsUnderScheduledSubjects(t *testing.T) {
	f := newTimetableFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.service.CreateEntry(context.Background(), nil, createEntryRequest())
	require.NoError(t, err)

	rows, err := f.service.Coverage(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Scheduled)
	assert.Equal(t, 3, rows[0].Credits)
	assert.Equal(t, "under", rows[0].Status)
}

func TestGridFallsBackToStoreOnCacheMiss(t *testing.T) {
	f := newTimetableFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.service.CreateEntry(context.Background(), nil, createEntryRequest())
	require.NoError(t, err)

	entries, err := f.service.Grid(context.Background(), testSession, testCourse, strPtr("sec-a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, slot.Monday, entries[0].Day)
}
