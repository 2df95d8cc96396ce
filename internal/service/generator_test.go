package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

type generatorFixture struct {
	service *GeneratorService
	entries *memoryStore
	effects *recordingEffects
}

// newGeneratorFixture wires the generator against in-memory stores. The mock
// database only hands out transactions; expectations are bulk and unordered
// because the candidate order depends on the shuffle.
func newGeneratorFixture(t *testing.T, seed int64, subjects *fakeSubjects, offerings *fakeOfferings, rooms []models.Room) *generatorFixture {
	t.Helper()
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 600; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	entries := newMemoryStore()
	effects := &recordingEffects{}
	validator := newTestValidator(entries, offerings, &fakeAbsences{})
	service := NewGeneratorService(db, entries, subjects, &fakeRooms{rooms: rooms}, validator,
		nopCache{}, effects, NewMetrics(), rand.New(rand.NewSource(seed)), zap.NewNop())
	return &generatorFixture{service: service, entries: entries, effects: effects}
}

func twoSectionCatalog() (*fakeSubjects, *fakeOfferings) {
	subjects := newFakeSubjects()
	offerings := newFakeOfferings()

	math := testSubject()
	lab := testLabSubject()
	subjects.add(math,
		models.SubjectOffering{SubjectID: math.ID, CourseID: testCourse, SectionID: strPtr("sec-a")},
		models.SubjectOffering{SubjectID: math.ID, CourseID: testCourse, SectionID: strPtr("sec-b")},
	)
	subjects.add(lab,
		models.SubjectOffering{SubjectID: lab.ID, CourseID: testCourse, SectionID: nil},
	)
	offerings.offer(math.ID, testCourse, "sec-a", "sec-b")
	offerings.offer(lab.ID, testCourse)
	return subjects, offerings
}

func testRooms(n int) []models.Room {
	rooms := make([]models.Room, n)
	for i := range rooms {
		rooms[i] = models.Room{ID: fmt.Sprintf("room-%d", i+1)}
	}
	return rooms
}

func placementKeys(entries []*models.TimetableEntry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		section := "all"
		if e.SectionID != nil {
			section = *e.SectionID
		}
		keys = append(keys, fmt.Sprintf("%s/%s/%s/%d/%s", e.SubjectID, section, e.Day, e.Period, e.RoomID))
	}
	sort.Strings(keys)
	return keys
}

func TestGenerateMeetsQuotas(t *testing.T) {
	subjects, offerings := twoSectionCatalog()
	f := newGeneratorFixture(t, 7, subjects, offerings, testRooms(4))

	summary, err := f.service.Generate(context.Background(), nil, testSession)
	require.NoError(t, err)

	// Mathematics: 3 credits for each of two sections. Physics Lab: 2
	// credits course-wide.
	assert.Equal(t, 8, summary.Created)
	assert.Len(t, f.entries.all(), 8)
	assert.Contains(t, f.effects.actions(), models.AuditActionGenerate)

	// Every placement passed the full validator, so the grid it produced
	// must be free of resource and day-shape collisions.
	seenStaff := map[string]bool{}
	seenRoom := map[string]bool{}
	seenDay := map[string]bool{}
	for _, e := range f.entries.all() {
		for _, p := range e.Span() {
			staffKey := fmt.Sprintf("%s/%s/%d", e.StaffID, e.Day, p)
			require.False(t, seenStaff[staffKey], "staff double-booked at %s", staffKey)
			seenStaff[staffKey] = true

			roomKey := fmt.Sprintf("%s/%s/%d", e.RoomID, e.Day, p)
			require.False(t, seenRoom[roomKey], "room double-booked at %s", roomKey)
			seenRoom[roomKey] = true
		}
		section := "all"
		if e.SectionID != nil {
			section = *e.SectionID
		}
		dayKey := fmt.Sprintf("%s/%s/%s", e.SubjectID, section, e.Day)
		require.False(t, seenDay[dayKey], "subject repeated on %s", dayKey)
		seenDay[dayKey] = true
	}
}

func TestGenerateSecondRunCreatesNothing(t *testing.T) {
	subjects, offerings := twoSectionCatalog()
	f := newGeneratorFixture(t, 7, subjects, offerings, testRooms(4))

	first, err := f.service.Generate(context.Background(), nil, testSession)
	require.NoError(t, err)
	require.Equal(t, 8, first.Created)

	second, err := f.service.Generate(context.Background(), nil, testSession)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Skipped)
	assert.Len(t, f.entries.all(), 8)
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	runs := make([][]string, 2)
	for i := range runs {
		subjects, offerings := twoSectionCatalog()
		f := newGeneratorFixture(t, 99, subjects, offerings, testRooms(4))
		_, err := f.service.Generate(context.Background(), nil, testSession)
		require.NoError(t, err)
		runs[i] = placementKeys(f.entries.all())
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestGenerateReportsShortfall(t *testing.T) {
	subjects := newFakeSubjects()
	offerings := newFakeOfferings()
	heavy := &models.Subject{ID: "subj-h", Name: "History", StaffID: testStaff, Credits: 7, IsLab: boolPtr(false)}
	subjects.add(heavy, models.SubjectOffering{SubjectID: heavy.ID, CourseID: testCourse, SectionID: strPtr("sec-a")})
	offerings.offer(heavy.ID, testCourse, "sec-a")

	f := newGeneratorFixture(t, 3, subjects, offerings, testRooms(2))
	summary, err := f.service.Generate(context.Background(), nil, testSession)
	require.NoError(t, err)

	// Seven meetings cannot fit a five-day week at one meeting per day. The
	// first five candidates per day win; the other twenty-five slots are each
	// counted as a skip, and the validator rejections carry tagged messages.
	assert.Equal(t, 5, summary.Created)
	assert.Equal(t, 25, summary.Skipped)
	require.NotEmpty(t, summary.Errors)
	for _, msg := range summary.Errors {
		assert.Contains(t, msg, "History")
		assert.Contains(t, msg, "course-1/sec-a")
	}
}

func TestGenerateTriesEveryRoom(t *testing.T) {
	subjects := newFakeSubjects()
	offerings := newFakeOfferings()
	solo := &models.Subject{ID: "subj-s", Name: "Civics", StaffID: testStaff, Credits: 1, IsLab: boolPtr(false)}
	subjects.add(solo, models.SubjectOffering{SubjectID: solo.ID, CourseID: testCourse, SectionID: strPtr("sec-a")})
	offerings.offer(solo.ID, testCourse, "sec-a")

	for _, seed := range []int64{1, 2, 3, 5, 8} {
		f := newGeneratorFixture(t, seed, subjects, offerings, testRooms(2))

		// The teacher is booked elsewhere all week except Monday P1, where an
		// unrelated class holds room-1. Only room-2 can take the placement,
		// so the generator must keep scanning rooms after the first refusal.
		require.NoError(t, f.entries.Create(context.Background(), nil, &models.TimetableEntry{
			ID: "blocker-mon-1", SessionID: testSession, CourseID: "course-x",
			SubjectID: "subj-x", StaffID: "staff-x", RoomID: "room-1",
			Day: slot.Monday, Period: 1, Duration: 1,
		}))
		for _, day := range slot.Days {
			for p := slot.MinPeriod; p <= slot.MaxPeriod; p++ {
				if day == slot.Monday && p == 1 {
					continue
				}
				require.NoError(t, f.entries.Create(context.Background(), nil, &models.TimetableEntry{
					ID:        fmt.Sprintf("busy-%s-%d", day, p),
					SessionID: testSession, CourseID: "course-x",
					SubjectID: "subj-x", StaffID: testStaff, RoomID: "room-1",
					Day: day, Period: p, Duration: 1,
				}))
			}
		}

		summary, err := f.service.Generate(context.Background(), nil, testSession)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Created, "seed %d", seed)

		placed := 0
		for _, e := range f.entries.all() {
			if e.SubjectID == solo.ID {
				placed++
				assert.Equal(t, "room-2", e.RoomID, "seed %d", seed)
			}
		}
		assert.Equal(t, 1, placed, "seed %d", seed)
	}
}

func TestGenerateRequiresRooms(t *testing.T) {
	subjects, offerings := twoSectionCatalog()
	f := newGeneratorFixture(t, 1, subjects, offerings, nil)

	_, err := f.service.Generate(context.Background(), nil, testSession)
	assert.Error(t, err)
	assert.Empty(t, f.entries.all())
}
