package service

import (
	"context"
	"fmt"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	"github.com/campuskit/timetable-api/pkg/export"
)

type staffStore interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	List(ctx context.Context) ([]models.Staff, error)
}

type catalogRoomStore interface {
	List(ctx context.Context) ([]models.Room, error)
}

// ExportService renders a scope's weekly grid as CSV or PDF. Cell text is
// "subject (staff, room)"; a two-period lab fills both of its cells.
type ExportService struct {
	timetable *TimetableService
	subjects  subjectStore
	staff     staffStore
	rooms     catalogRoomStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

func NewExportService(timetable *TimetableService, subjects subjectStore, staff staffStore, rooms catalogRoomStore, csv *export.CSVExporter, pdf *export.PDFExporter) *ExportService {
	return &ExportService{
		timetable: timetable,
		subjects:  subjects,
		staff:     staff,
		rooms:     rooms,
		csv:       csv,
		pdf:       pdf,
	}
}

// CSV renders the scope grid as CSV bytes.
func (s *ExportService) CSV(ctx context.Context, sessionID, courseID string, sectionID *string) ([]byte, error) {
	grid, err := s.buildGrid(ctx, sessionID, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(grid)
}

// PDF renders the scope grid as a landscape PDF.
func (s *ExportService) PDF(ctx context.Context, sessionID, courseID string, sectionID *string) ([]byte, error) {
	grid, err := s.buildGrid(ctx, sessionID, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Weekly Timetable - course %s", courseID)
	if sectionID != nil {
		title = fmt.Sprintf("Weekly Timetable - section %s", *sectionID)
	}
	return s.pdf.Render(grid, title)
}

func (s *ExportService) buildGrid(ctx context.Context, sessionID, courseID string, sectionID *string) (export.Grid, error) {
	entries, err := s.timetable.Grid(ctx, sessionID, courseID, sectionID)
	if err != nil {
		return export.Grid{}, err
	}

	staffNames, err := s.staffNames(ctx)
	if err != nil {
		return export.Grid{}, err
	}
	roomNames, err := s.roomNames(ctx)
	if err != nil {
		return export.Grid{}, err
	}

	headers := make([]string, 0, slot.PeriodsPerDay+1)
	headers = append(headers, "Day")
	for p := slot.MinPeriod; p <= slot.MaxPeriod; p++ {
		headers = append(headers, slot.Label(p))
	}

	cells := map[slot.Day]map[int]string{}
	for _, day := range slot.Days {
		cells[day] = map[int]string{}
	}
	for i := range entries {
		entry := &entries[i]
		subject, err := s.subjects.FindByID(ctx, entry.SubjectID)
		if err != nil {
			return export.Grid{}, err
		}
		text := fmt.Sprintf("%s (%s, %s)", subject.Name, staffNames[entry.StaffID], roomNames[entry.RoomID])
		for _, p := range entry.Span() {
			cells[entry.Day][p] = text
		}
	}

	rows := make([][]string, 0, len(slot.Days))
	for _, day := range slot.Days {
		row := make([]string, 0, slot.PeriodsPerDay+1)
		row = append(row, string(day))
		for p := slot.MinPeriod; p <= slot.MaxPeriod; p++ {
			row = append(row, cells[day][p])
		}
		rows = append(rows, row)
	}
	return export.Grid{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) staffNames(ctx context.Context) (map[string]string, error) {
	members, err := s.staff.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.FullName
	}
	return names, nil
}

func (s *ExportService) roomNames(ctx context.Context) (map[string]string, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rooms))
	for _, r := range rooms {
		names[r.ID] = r.Name
	}
	return names, nil
}
