package availability

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
)

// HourlySlots returns the sorted, de-duplicated hourly starts that fit entirely inside
// the active windows, skipping lunch. Windows that start off the hour begin at the next
// full hour.
func HourlySlots(windows []model.Window) []calendar.Clock {
	var slots []calendar.Clock
	for _, w := range windows {
		if !w.Active || !w.Start.Before(w.End) {
			continue
		}
		start := w.Start
		if start.Minute() != 0 {
			start = calendar.NewClock(start.Hour()+1, 0)
		}
		for t := start; t.Add(calendar.SlotLength) <= w.End; t = t.Add(calendar.SlotLength) {
			if calendar.IsLunch(t) {
				continue
			}
			slots = append(slots, t)
		}
	}
	return sortClocks(lo.Uniq(slots))
}

// SlotsForDate is HourlySlots over the windows of the weekday of day.
func SlotsForDate(windows []model.Window, day time.Time) []calendar.Clock {
	return HourlySlots(schedule.ForWeekday(windows, calendar.Weekday(day)))
}

// Input is everything Compute needs for one dentist on one date.
type Input struct {
	Date        time.Time
	DentistID   int64
	RoomID      *int64
	Windows     []model.Window
	Blocks      []model.Block
	DentistBusy []calendar.Clock
	RoomBusy    []calendar.Clock
}

type Result struct {
	Date        string           `json:"fecha"`
	DentistID   int64            `json:"id_odontologo"`
	RoomID      *int64           `json:"id_consultorio"`
	DentistBusy []calendar.Clock `json:"ocupadas_odontologo"`
	RoomBusy    []calendar.Clock `json:"ocupadas_consultorio"`
	Busy        []calendar.Clock `json:"ocupadas"`
	Available   []calendar.Clock `json:"disponibles"`
}

// Compute returns the free slots of a dentist on a date. Blocked dates have no slots at
// all. Busy times are those of non cancelled appointments of the dentist and, when a
// room is given, of the room.
func Compute(in Input) Result {
	res := Result{
		Date:        calendar.FormatDate(in.Date),
		DentistID:   in.DentistID,
		RoomID:      in.RoomID,
		DentistBusy: []calendar.Clock{},
		RoomBusy:    []calendar.Clock{},
		Busy:        []calendar.Clock{},
		Available:   []calendar.Clock{},
	}
	dentist := in.DentistID
	if schedule.IsBlocked(in.Blocks, &dentist, in.Date) {
		return res
	}

	res.DentistBusy = sortClocks(lo.Uniq(in.DentistBusy))
	if in.RoomID != nil {
		res.RoomBusy = sortClocks(lo.Uniq(in.RoomBusy))
	}
	res.Busy = sortClocks(lo.Union(res.DentistBusy, res.RoomBusy))
	res.Available = lo.Without(SlotsForDate(in.Windows, in.Date), res.Busy...)
	return res
}

func sortClocks(in []calendar.Clock) []calendar.Clock {
	if in == nil {
		return []calendar.Clock{}
	}
	sort.Slice(in, func(i, j int) bool { return in[i] < in[j] })
	return in
}
