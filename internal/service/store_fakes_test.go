package service

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// memoryStore is an in-memory entryStore: placements answer the occupancy
// queries the way the SQL layer would, so validator and generator scenarios
// run without a database.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.TimetableEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*models.TimetableEntry{}}
}

func (m *memoryStore) all() []*models.TimetableEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TimetableEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}

func (m *memoryStore) Create(_ context.Context, _ sqlx.ExtContext, entry *models.TimetableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.entries[entry.ID] = &clone
	return nil
}

func (m *memoryStore) Update(_ context.Context, _ sqlx.ExtContext, entry *models.TimetableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; !ok {
		return appErrors.ErrNotFound
	}
	clone := *entry
	m.entries[entry.ID] = &clone
	return nil
}

func (m *memoryStore) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memoryStore) DeleteBySession(_ context.Context, _ sqlx.ExtContext, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, e := range m.entries {
		if e.SessionID == sessionID {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*models.TimetableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *memoryStore) ListForScope(_ context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error) {
	out := []models.TimetableEntry{}
	for _, e := range m.all() {
		if e.SessionID != sessionID || e.CourseID != courseID {
			continue
		}
		if sectionID != nil && e.SectionID != nil && *e.SectionID != *sectionID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memoryStore) ListByStaff(_ context.Context, sessionID, staffID string) ([]models.TimetableEntry, error) {
	out := []models.TimetableEntry{}
	for _, e := range m.all() {
		if e.SessionID == sessionID && e.StaffID == staffID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryStore) ListBySession(_ context.Context, sessionID string) ([]models.TimetableEntry, error) {
	out := []models.TimetableEntry{}
	for _, e := range m.all() {
		if e.SessionID == sessionID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryStore) ListByStaffDay(_ context.Context, _ sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.TimetableEntry, error) {
	out := []models.TimetableEntry{}
	for _, e := range m.all() {
		if e.SessionID == sessionID && e.StaffID == staffID && e.Day == day {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryStore) ExistsStaffAt(_ context.Context, _ sqlx.ExtContext, sessionID string, day slot.Day, period int, staffID, excludeID string) (bool, error) {
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID == sessionID && e.Day == day && e.StaffID == staffID && e.Occupies(period) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ExistsRoomAt(_ context.Context, _ sqlx.ExtContext, sessionID string, day slot.Day, period int, roomID, excludeID string) (bool, error) {
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID == sessionID && e.Day == day && e.RoomID == roomID && e.Occupies(period) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ExistsScopeAt(_ context.Context, _ sqlx.ExtContext, sessionID string, day slot.Day, period int, courseID string, sectionID *string, excludeID string) (bool, error) {
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID != sessionID || e.Day != day || e.CourseID != courseID || !e.Occupies(period) {
			continue
		}
		if sectionID == nil {
			return true, nil
		}
		if e.SectionID == nil || *e.SectionID == *sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ExistsSubjectOnDay(_ context.Context, _ sqlx.ExtContext, sessionID string, day slot.Day, subjectID, courseID string, sectionID *string, excludeID string) (bool, error) {
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID != sessionID || e.Day != day || e.SubjectID != subjectID {
			continue
		}
		if sectionID != nil {
			if e.SectionID != nil && *e.SectionID == *sectionID {
				return true, nil
			}
			continue
		}
		if e.CourseID == courseID && e.SectionID == nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ExistsSubjectAt(_ context.Context, _ sqlx.ExtContext, sessionID string, day slot.Day, period int, subjectID, courseID, excludeID string) (bool, error) {
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID == sessionID && e.Day == day && e.SubjectID == subjectID && e.CourseID == courseID && e.Occupies(period) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CountForSubjectScope(_ context.Context, _ sqlx.ExtContext, sessionID, subjectID, courseID string, sectionID *string, excludeID string) (int, error) {
	count := 0
	for _, e := range m.all() {
		if e.ID == excludeID {
			continue
		}
		if e.SessionID != sessionID || e.SubjectID != subjectID || e.CourseID != courseID {
			continue
		}
		if sectionID != nil {
			if e.SectionID != nil && *e.SectionID == *sectionID {
				count++
			}
			continue
		}
		if e.SectionID == nil {
			count++
		}
	}
	return count, nil
}

// fakeOfferings answers offering-scope questions from fixed sets.
type fakeOfferings struct {
	courses  map[string]map[string]bool // subjectID -> courseID
	sections map[string]map[string]bool // subjectID -> sectionID
}

func newFakeOfferings() *fakeOfferings {
	return &fakeOfferings{courses: map[string]map[string]bool{}, sections: map[string]map[string]bool{}}
}

func (f *fakeOfferings) offer(subjectID, courseID string, sectionIDs ...string) {
	if f.courses[subjectID] == nil {
		f.courses[subjectID] = map[string]bool{}
	}
	f.courses[subjectID][courseID] = true
	for _, sectionID := range sectionIDs {
		if f.sections[subjectID] == nil {
			f.sections[subjectID] = map[string]bool{}
		}
		f.sections[subjectID][sectionID] = true
	}
}

func (f *fakeOfferings) OfferedInCourse(_ context.Context, _ sqlx.ExtContext, subjectID, courseID string) (bool, error) {
	return f.courses[subjectID][courseID], nil
}

func (f *fakeOfferings) SectionScoped(_ context.Context, _ sqlx.ExtContext, subjectID string) (bool, error) {
	return len(f.sections[subjectID]) > 0, nil
}

func (f *fakeOfferings) OfferedToSection(_ context.Context, _ sqlx.ExtContext, subjectID, sectionID string) (bool, error) {
	return f.sections[subjectID][sectionID], nil
}

// fakeAbsences serves a fixed set of unavailability windows.
type fakeAbsences struct {
	windows []models.StaffUnavailability
}

func (f *fakeAbsences) ListForStaffDay(_ context.Context, _ sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.StaffUnavailability, error) {
	out := []models.StaffUnavailability{}
	for _, w := range f.windows {
		if w.SessionID == sessionID && w.StaffID == staffID && w.Day == day {
			out = append(out, w)
		}
	}
	return out, nil
}

// recordingEffects captures dispatched side effects for assertions.
type recordingEffects struct {
	mu            sync.Mutex
	staffNotices  []string
	notifiedStaff []string
	scopeNotices  []string
	auditActions  []string
}

func (r *recordingEffects) NotifyStaff(staffID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staffNotices = append(r.staffNotices, message)
	r.notifiedStaff = append(r.notifiedStaff, staffID)
}

func (r *recordingEffects) NotifyScope(_ string, _ *string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopeNotices = append(r.scopeNotices, message)
}

func (r *recordingEffects) Audit(_ *string, action string, _ *string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditActions = append(r.auditActions, action)
}

func (r *recordingEffects) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.auditActions...)
}

func (r *recordingEffects) notified() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.notifiedStaff...)
}

// fakeCourseStaff maps courses to their teaching staff.
type fakeCourseStaff struct {
	byCourse map[string][]models.Staff
}

func (f *fakeCourseStaff) ListByCourse(_ context.Context, courseID string) ([]models.Staff, error) {
	return f.byCourse[courseID], nil
}

// nopCache is a gridCache and slotCache that always misses.
type nopCache struct{}

func (nopCache) GetGrid(context.Context, string, string, *string) ([]models.TimetableEntry, error) {
	return nil, appErrors.ErrCacheMiss
}

func (nopCache) SetGrid(context.Context, string, string, *string, []models.TimetableEntry) error {
	return nil
}

func (nopCache) GetOpenSlots(context.Context, string, string, *string) ([]models.ExtraClassAvailability, error) {
	return nil, appErrors.ErrCacheMiss
}

func (nopCache) SetOpenSlots(context.Context, string, string, *string, []models.ExtraClassAvailability) error {
	return nil
}

func (nopCache) InvalidateCourse(context.Context, string, string) error {
	return nil
}

// fakeSubjects serves subjects in insertion order, like the SQL layer's
// ordered listing.
type fakeSubjects struct {
	order     []string
	subjects  map[string]*models.Subject
	offerings map[string][]models.SubjectOffering
}

func newFakeSubjects() *fakeSubjects {
	return &fakeSubjects{subjects: map[string]*models.Subject{}, offerings: map[string][]models.SubjectOffering{}}
}

func (f *fakeSubjects) add(subject *models.Subject, offerings ...models.SubjectOffering) {
	if _, ok := f.subjects[subject.ID]; !ok {
		f.order = append(f.order, subject.ID)
	}
	f.subjects[subject.ID] = subject
	f.offerings[subject.ID] = offerings
}

func (f *fakeSubjects) FindByID(_ context.Context, id string) (*models.Subject, error) {
	s, ok := f.subjects[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubjects) ListSchedulable(_ context.Context) ([]models.Subject, error) {
	out := []models.Subject{}
	for _, id := range f.order {
		if s := f.subjects[id]; s.Credits > 0 {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubjects) ListOfferings(_ context.Context, subjectID string) ([]models.SubjectOffering, error) {
	return f.offerings[subjectID], nil
}

// fakeRooms is a fixed room catalog.
type fakeRooms struct {
	rooms []models.Room
}

func (f *fakeRooms) List(context.Context) ([]models.Room, error) {
	return f.rooms, nil
}

// fakeExtraSlots is an in-memory extra slot pool with the one-shot claim
// guard.
type fakeExtraSlots struct {
	mu    sync.Mutex
	slots map[string]*models.ExtraClassAvailability
}

func newFakeExtraSlots() *fakeExtraSlots {
	return &fakeExtraSlots{slots: map[string]*models.ExtraClassAvailability{}}
}

func (f *fakeExtraSlots) Upsert(_ context.Context, _ sqlx.ExtContext, s *models.ExtraClassAvailability) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.slots {
		if existing.SessionID == s.SessionID && existing.CourseID == s.CourseID &&
			existing.RoomID == s.RoomID && existing.Day == s.Day && existing.Period == s.Period {
			return false, nil
		}
	}
	clone := *s
	f.slots[s.ID] = &clone
	return true, nil
}

func (f *fakeExtraSlots) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.ExtraClassAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeExtraSlots) ListOpenByCourse(_ context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ExtraClassAvailability{}
	for _, s := range f.slots {
		if s.SessionID == sessionID && s.CourseID == courseID && s.Open() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeExtraSlots) ExistsOpenAt(_ context.Context, _ sqlx.ExtContext, sessionID, courseID string, sectionID *string, day slot.Day, period int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if s.SessionID != sessionID || s.CourseID != courseID || s.Day != day || !s.Open() {
			continue
		}
		if sectionID != nil && s.SectionID != nil && *s.SectionID != *sectionID {
			continue
		}
		if period >= s.Period && period < s.Period+s.Duration {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeExtraSlots) MarkClaimed(_ context.Context, _ sqlx.ExtContext, slotID, entryID, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return appErrors.ErrNotFound
	}
	if s.ClaimedBy != nil {
		return models.NewConflict(models.ReasonSlotClaimed, "extra slot has already been claimed")
	}
	s.ClaimedBy = &entryID
	s.SubjectID = &subjectID
	return nil
}
