package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustClock(t *testing.T, s string) MinuteOfDay {
	t.Helper()
	m, err := ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return m
}

func testTemplate(t *testing.T, start, end string, slot int) *ScheduleTemplate {
	t.Helper()
	return &ScheduleTemplate{
		ID:          uuid.New(),
		PhysicianID: uuid.New(),
		DayOfWeek:   1,
		StartMinute: mustClock(t, start),
		EndMinute:   mustClock(t, end),
		SlotMinutes: slot,
		MaxPerDay:   20,
		Active:      true,
	}
}

func apptAt(date time.Time, clock string, minutes int, status Status) Appointment {
	h := 0
	m := 0
	if len(clock) >= 5 {
		h = int(clock[0]-'0')*10 + int(clock[1]-'0')
		m = int(clock[3]-'0')*10 + int(clock[4]-'0')
	}
	return Appointment{
		ID:              uuid.New(),
		StartsAt:        time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location()),
		DurationMinutes: minutes,
		Status:          status,
	}
}

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func TestFreeSlotsBlocksOverlap(t *testing.T) {
	// Template Mon 08:00-10:00, 30 min slots, one confirmed 08:30-09:00.
	tpl := testTemplate(t, "08:00", "10:00", 30)
	appts := []Appointment{apptAt(monday, "08:30", 30, StatusConfirmed)}

	got := ClockStrings(FreeSlots(tpl, monday, appts))
	want := []string{"08:00", "09:00", "09:30"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFreeSlotsWithinWindowAndSpaced(t *testing.T) {
	tpl := testTemplate(t, "09:00", "12:00", 20)
	slots := FreeSlots(tpl, monday, nil)

	seen := map[MinuteOfDay]bool{}
	for i, s := range slots {
		if s < tpl.StartMinute || s >= tpl.EndMinute {
			t.Fatalf("slot %s outside window", s)
		}
		if seen[s] {
			t.Fatalf("duplicate slot %s", s)
		}
		seen[s] = true
		if i > 0 && int(s)-int(slots[i-1]) != tpl.SlotMinutes {
			t.Fatalf("slots not %d minutes apart: %v", tpl.SlotMinutes, slots)
		}
	}
	if len(slots) != 9 {
		t.Fatalf("expected 9 slots in 09:00-12:00/20min, got %d", len(slots))
	}
}

func TestFreeSlotsSingleSlotBoundary(t *testing.T) {
	tpl := testTemplate(t, "09:00", "09:30", 30)
	slots := FreeSlots(tpl, monday, nil)
	if len(slots) != 1 || slots[0].Clock() != "09:00" {
		t.Fatalf("expected exactly [09:00], got %v", slots)
	}
}

func TestFreeSlotsEmptyWindow(t *testing.T) {
	if slots := FreeSlots(testTemplate(t, "09:00", "09:00", 30), monday, nil); len(slots) != 0 {
		t.Fatalf("start==end should yield no slots, got %v", slots)
	}
	if slots := FreeSlots(testTemplate(t, "09:00", "10:00", 0), monday, nil); len(slots) != 0 {
		t.Fatalf("zero slot duration should yield no slots, got %v", slots)
	}
	inactive := testTemplate(t, "09:00", "10:00", 30)
	inactive.Active = false
	if slots := FreeSlots(inactive, monday, nil); len(slots) != 0 {
		t.Fatalf("inactive template should yield no slots, got %v", slots)
	}
	if slots := FreeSlots(nil, monday, nil); len(slots) != 0 {
		t.Fatalf("nil template should yield no slots, got %v", slots)
	}
}

func TestFreeSlotsDiscardsPartialTail(t *testing.T) {
	// 09:00-10:15 with 30 min slots: 09:00, 09:30; 10:00-10:15 is too short.
	tpl := testTemplate(t, "09:00", "10:15", 30)
	got := ClockStrings(FreeSlots(tpl, monday, nil))
	if len(got) != 2 || got[0] != "09:00" || got[1] != "09:30" {
		t.Fatalf("expected [09:00 09:30], got %v", got)
	}
}

func TestFreeSlotsLongAppointmentSwallowsSeveralSlots(t *testing.T) {
	tpl := testTemplate(t, "08:00", "10:00", 30)
	appts := []Appointment{apptAt(monday, "08:30", 60, StatusScheduled)}
	got := ClockStrings(FreeSlots(tpl, monday, appts))
	want := []string{"08:00", "09:30"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFreeSlotsNoClippingOutsideWindow(t *testing.T) {
	// Appointment 07:30-08:30 starts before the window but still blocks 08:00.
	tpl := testTemplate(t, "08:00", "09:00", 30)
	appts := []Appointment{apptAt(monday, "07:30", 60, StatusConfirmed)}
	got := ClockStrings(FreeSlots(tpl, monday, appts))
	if len(got) != 1 || got[0] != "08:30" {
		t.Fatalf("expected [08:30], got %v", got)
	}
}

func TestFreeSlotsIgnoresInactiveStates(t *testing.T) {
	tpl := testTemplate(t, "08:00", "09:00", 30)
	appts := []Appointment{
		apptAt(monday, "08:00", 30, StatusCancelled),
		apptAt(monday, "08:30", 30, StatusNoShow),
	}
	got := FreeSlots(tpl, monday, appts)
	if len(got) != 2 {
		t.Fatalf("cancelled/no-show must not block slots, got %v", got)
	}
}

func TestFreeSlotsIdempotent(t *testing.T) {
	tpl := testTemplate(t, "08:00", "12:00", 15)
	appts := []Appointment{apptAt(monday, "09:15", 45, StatusScheduled)}
	first := ClockStrings(FreeSlots(tpl, monday, appts))
	second := ClockStrings(FreeSlots(tpl, monday, appts))
	if len(first) != len(second) {
		t.Fatalf("repeated computation differs: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated computation differs: %v vs %v", first, second)
		}
	}
}
