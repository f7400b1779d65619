// Package board assembles the scheduling board: the day layout served to
// the browser, the drag gesture channel and the now-line ticker.
package board

import (
	"context"

	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/availability"
)

// Source joins the appointment registry with the clinic roster, vacations
// and hours. It implements availability.Source.
type Source struct {
	reg    *scheduling.Registry
	clinic *clinic.Service
}

func NewSource(reg *scheduling.Registry, svc *clinic.Service) *Source {
	return &Source{reg: reg, clinic: svc}
}

func (s *Source) Snapshot(ctx context.Context) (availability.Snapshot, error) {
	absences, err := s.clinic.Absences(ctx)
	if err != nil {
		return availability.Snapshot{}, err
	}
	return availability.Snapshot{
		Bookings:     s.reg.Snapshot(),
		Absences:     absences,
		WorkingHours: s.clinic.WorkingHours(ctx),
	}, nil
}

func (s *Source) Dentists(ctx context.Context, ids []string) ([]availability.DentistRef, error) {
	return s.clinic.DentistRefs(ctx, ids)
}

var _ availability.Source = (*Source)(nil)
