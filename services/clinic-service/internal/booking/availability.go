package booking

import (
	"context"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/availability"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
)

// Availability lists the free hourly slots of a dentist on date, optionally also
// subtracting what the room already holds.
func (s *Service) Availability(ctx context.Context, date time.Time, dentistID int64, roomID *int64) (availability.Result, error) {
	date = calendar.Day(date)
	windows, err := s.sched.Windows(ctx, s.conn, dentistID)
	if err != nil {
		return availability.Result{}, err
	}
	blocks, err := s.sched.BlocksInRange(ctx, s.conn, date, date, &dentistID)
	if err != nil {
		return availability.Result{}, err
	}
	dentistBusy, err := s.appts.BusyTimes(ctx, date, &dentistID, nil)
	if err != nil {
		return availability.Result{}, err
	}
	var roomBusy []calendar.Clock
	if roomID != nil {
		if roomBusy, err = s.appts.BusyTimes(ctx, date, nil, roomID); err != nil {
			return availability.Result{}, err
		}
	}
	return availability.Compute(availability.Input{
		Date:        date,
		DentistID:   dentistID,
		RoomID:      roomID,
		Windows:     windows,
		Blocks:      blocks,
		DentistBusy: dentistBusy,
		RoomBusy:    roomBusy,
	}), nil
}

// DayMetadata reports capacity and block state of one date. Without a dentist only
// global blocks are looked at.
func (s *Service) DayMetadata(ctx context.Context, date time.Time, dentistID, roomID *int64) (availability.DayMetadata, error) {
	date = calendar.Day(date)
	in := availability.DayInput{Date: date, DentistID: dentistID, RoomID: roomID}

	blocks, err := s.sched.BlocksInRange(ctx, s.conn, date, date, dentistID)
	if err != nil {
		return availability.DayMetadata{}, err
	}
	in.Blocks = blocks
	if dentistID != nil {
		if in.Windows, err = s.sched.Windows(ctx, s.conn, *dentistID); err != nil {
			return availability.DayMetadata{}, err
		}
		if in.Bookings, err = s.appts.Slots(ctx, date, date, dentistID, roomID); err != nil {
			return availability.DayMetadata{}, err
		}
	}
	return availability.Day(in), nil
}

// MonthSummary summarises every day of a month, keyed by YYYY-MM-DD.
func (s *Service) MonthSummary(ctx context.Context, year int, month time.Month, dentistID, roomID *int64) (map[string]availability.DaySummary, error) {
	if month < time.January || month > time.December {
		return nil, apperr.Validation("month", "Debe estar entre 1 y 12.")
	}
	first, last := calendar.MonthBounds(year, month)
	in := availability.MonthInput{Year: year, Month: month, DentistID: dentistID}

	var err error
	if in.Blocks, err = s.sched.BlocksInRange(ctx, s.conn, first, last, dentistID); err != nil {
		return nil, err
	}
	if in.Bookings, err = s.appts.Slots(ctx, first, last, dentistID, roomID); err != nil {
		return nil, err
	}
	if dentistID != nil {
		if in.Windows, err = s.sched.Windows(ctx, s.conn, *dentistID); err != nil {
			return nil, err
		}
	}
	return availability.Month(in), nil
}

// BlockedDays lists the blocked dates of [from, to], global ones plus the dentist's.
func (s *Service) BlockedDays(ctx context.Context, from, to time.Time, dentistID *int64) ([]availability.BlockedDay, error) {
	from, to = calendar.Day(from), calendar.Day(to)
	if to.Before(from) {
		return nil, apperr.Invalid("El rango debe ser válido (to >= from).")
	}
	blocks, err := s.sched.BlocksInRange(ctx, s.conn, from, to, dentistID)
	if err != nil {
		return nil, err
	}
	return availability.BlockedDays(blocks, dentistID, from, to), nil
}
