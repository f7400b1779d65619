package clinic

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apognu/gocal"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// ParseVacationsICS turns the events of an iCalendar feed that intersect
// [from, to] into vacations for one dentist. DTEND is exclusive, so an event
// ending exactly at midnight does not block that day.
func ParseVacationsICS(r io.Reader, dentistID string, from, to time.Time) ([]Vacation, error) {
	parser := gocal.NewParser(r)
	parser.Start, parser.End = &from, &to
	// Skip a malformed event instead of rejecting the whole feed.
	parser.Strict.Mode = gocal.StrictModeFailEvent
	if err := parser.Parse(); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []Vacation
	for _, e := range parser.Events {
		if e.Start == nil {
			continue
		}
		start := *e.Start
		end := start
		if e.End != nil && e.End.After(start) {
			end = *e.End
			if end.Equal(slotgrid.StartOfDay(end)) {
				end = end.AddDate(0, 0, -1)
			}
		}
		if end.Before(start) {
			end = start
		}
		out = append(out, Vacation{
			DentistID: dentistID,
			StartDate: slotgrid.DateKey(start),
			EndDate:   slotgrid.DateKey(end),
			Note:      strings.TrimSpace(e.Summary),
		})
	}
	return out, nil
}

// ImportVacations adds every vacation found in the feed and reports how
// many were stored. It stops at the first failure.
func (s *Service) ImportVacations(ctx context.Context, dentistID string, r io.Reader, from, to time.Time) (int, error) {
	if _, err := s.Dentist(ctx, dentistID); err != nil {
		return 0, err
	}
	vacations, err := ParseVacationsICS(r, dentistID, from, to)
	if err != nil {
		return 0, err
	}
	for i, v := range vacations {
		if _, err := s.AddVacation(ctx, v); err != nil {
			return i, err
		}
	}
	return len(vacations), nil
}
