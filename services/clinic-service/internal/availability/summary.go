package availability

import (
	"time"

	"github.com/samber/lo"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
)

// Booking is the part of an appointment the summaries look at.
type Booking struct {
	Date   time.Time
	Time   calendar.Clock
	Status model.Status
}

// countsAsOccupied excludes appointments that no longer hold a seat in the agenda.
func countsAsOccupied(s model.Status) bool {
	return s != model.StatusCancelled && s != model.StatusMaintenance
}

type DayMetadata struct {
	Date        string  `json:"fecha"`
	DentistID   *int64  `json:"id_odontologo"`
	RoomID      *int64  `json:"id_consultorio"`
	TotalSlots  int     `json:"slots_totales"`
	UsedSlots   int     `json:"slots_ocupados"`
	Full        bool    `json:"lleno"`
	Blocked     bool    `json:"bloqueado"`
	BlockReason *string `json:"motivo_bloqueo"`
}

// DayInput carries the data of one date. Without a dentist only global blocks count
// and slot figures stay at zero.
type DayInput struct {
	Date      time.Time
	DentistID *int64
	RoomID    *int64
	Windows   []model.Window
	Blocks    []model.Block
	Bookings  []Booking
}

func Day(in DayInput) DayMetadata {
	md := DayMetadata{
		Date:      calendar.FormatDate(in.Date),
		DentistID: in.DentistID,
		RoomID:    in.RoomID,
	}
	if reason, ok := schedule.BlockedReason(in.Blocks, in.DentistID, in.Date); ok {
		md.Blocked = true
		md.BlockReason = &reason
	}
	if in.DentistID == nil {
		return md
	}
	md.TotalSlots = len(SlotsForDate(in.Windows, in.Date))
	md.UsedSlots = len(occupiedTimes(in.Bookings, in.Date))
	md.Full = md.TotalSlots > 0 && md.UsedSlots >= md.TotalSlots
	return md
}

type DaySummary struct {
	Appointments int  `json:"total_citas"`
	TotalSlots   int  `json:"slots_totales"`
	UsedSlots    int  `json:"slots_ocupados"`
	Full         bool `json:"lleno"`
	Blocked      bool `json:"bloqueado"`
}

// MonthInput carries a whole month. Bookings are already filtered by dentist and room.
type MonthInput struct {
	Year      int
	Month     time.Month
	DentistID *int64
	Windows   []model.Window
	Blocks    []model.Block
	Bookings  []Booking
}

// Month summarises every day of the month keyed by YYYY-MM-DD. Appointments counts
// every state.
func Month(in MonthInput) map[string]DaySummary {
	first, last := calendar.MonthBounds(in.Year, in.Month)
	byDay := lo.GroupBy(in.Bookings, func(b Booking) string { return calendar.FormatDate(b.Date) })

	out := make(map[string]DaySummary, last.Day())
	for _, day := range calendar.Days(first, last) {
		key := calendar.FormatDate(day)
		bookings := byDay[key]
		sum := DaySummary{
			Appointments: len(bookings),
			Blocked:      schedule.IsBlocked(in.Blocks, in.DentistID, day),
		}
		if in.DentistID != nil {
			sum.TotalSlots = len(SlotsForDate(in.Windows, day))
			sum.UsedSlots = len(occupiedTimes(bookings, day))
			sum.Full = sum.TotalSlots > 0 && sum.UsedSlots >= sum.TotalSlots
		}
		out[key] = sum
	}
	return out
}

func occupiedTimes(bookings []Booking, day time.Time) []calendar.Clock {
	day = calendar.Day(day)
	times := lo.FilterMap(bookings, func(b Booking, _ int) (calendar.Clock, bool) {
		return b.Time, countsAsOccupied(b.Status) && calendar.Day(b.Date).Equal(day)
	})
	return lo.Uniq(times)
}

type BlockedDay struct {
	Date   string `json:"fecha"`
	Reason string `json:"motivo"`
}

// BlockedDays lists the blocked dates of [from, to]. Global blocks always count and
// the dentist's reason wins when both apply.
func BlockedDays(blocks []model.Block, dentist *int64, from, to time.Time) []BlockedDay {
	return lo.Map(schedule.BlockedDays(blocks, dentist, from, to), func(d schedule.BlockedDay, _ int) BlockedDay {
		return BlockedDay{Date: calendar.FormatDate(d.Date), Reason: d.Reason}
	})
}
