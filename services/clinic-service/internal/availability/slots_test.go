package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

func hm(h, m int) calendar.Clock { return calendar.NewClock(h, m) }

func clocks(hours ...int) []calendar.Clock {
	out := make([]calendar.Clock, 0, len(hours))
	for _, h := range hours {
		out = append(out, hm(h, 0))
	}
	return out
}

func day(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// 2026-01-26 is a Monday.
var monday = day("2026-01-26")

func TestHourlySlots_Basic(t *testing.T) {
	windows := []model.Window{
		{Weekday: 0, Start: hm(8, 0), End: hm(16, 0), Active: true},
		{Weekday: 0, Start: hm(9, 0), End: hm(11, 0), Active: true},
		{Weekday: 0, Start: hm(17, 30), End: hm(19, 0), Active: true},
		{Weekday: 0, Start: hm(6, 0), End: hm(7, 0), Active: false},
	}
	got := HourlySlots(windows)
	want := clocks(8, 9, 10, 11, 12, 15, 18)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestHourlySlots_WindowShorterThanSlot(t *testing.T) {
	got := HourlySlots([]model.Window{{Start: hm(9, 0), End: hm(9, 45), Active: true}})
	if len(got) != 0 {
		t.Fatalf("expected no slots, got %v", got)
	}
}

func TestCompute_SubtractsDentistAndRoom(t *testing.T) {
	room := int64(2)
	res := Compute(Input{
		Date:        monday,
		DentistID:   1,
		RoomID:      &room,
		Windows:     []model.Window{{Weekday: 0, Start: hm(8, 0), End: hm(12, 0), Active: true}},
		DentistBusy: clocks(9, 9),
		RoomBusy:    clocks(11),
	})
	if !reflect.DeepEqual(res.Available, clocks(8, 10)) {
		t.Fatalf("unexpected available %v", res.Available)
	}
	if !reflect.DeepEqual(res.Busy, clocks(9, 11)) {
		t.Fatalf("unexpected busy %v", res.Busy)
	}
	if !reflect.DeepEqual(res.DentistBusy, clocks(9)) {
		t.Fatalf("unexpected dentist busy %v", res.DentistBusy)
	}
}

func TestCompute_IgnoresRoomBusyWithoutRoom(t *testing.T) {
	res := Compute(Input{
		Date:      monday,
		DentistID: 1,
		Windows:   []model.Window{{Weekday: 0, Start: hm(8, 0), End: hm(10, 0), Active: true}},
		RoomBusy:  clocks(8),
	})
	if !reflect.DeepEqual(res.Available, clocks(8, 9)) {
		t.Fatalf("unexpected available %v", res.Available)
	}
	if len(res.RoomBusy) != 0 {
		t.Fatalf("room busy should be empty, got %v", res.RoomBusy)
	}
}

func TestCompute_BlockedDateIsEmpty(t *testing.T) {
	res := Compute(Input{
		Date:      monday,
		DentistID: 1,
		Windows:   []model.Window{{Weekday: 0, Start: hm(8, 0), End: hm(12, 0), Active: true}},
		Blocks:    []model.Block{{Date: day("1999-01-26"), Recurring: true}},
	})
	if len(res.Available) != 0 || res.Available == nil {
		t.Fatalf("expected empty non-nil slots, got %#v", res.Available)
	}
}

func TestCompute_OtherWeekdayHasNoSlots(t *testing.T) {
	res := Compute(Input{
		Date:      monday.AddDate(0, 0, 1),
		DentistID: 1,
		Windows:   []model.Window{{Weekday: 0, Start: hm(8, 0), End: hm(12, 0), Active: true}},
	})
	if len(res.Available) != 0 {
		t.Fatalf("expected no slots on tuesday, got %v", res.Available)
	}
}
