package scheduling

import "time"

// busyInterval is an occupied stretch of a physician's day, in minutes
// since midnight of the date under consideration.
type busyInterval struct {
	start int
	end   int
}

// FreeSlots derives the open slot start times for a template on a given date,
// given the physician's active appointments for that date.
//
// The window [StartMinute, EndMinute) is tiled with consecutive slots of
// SlotMinutes; a trailing partial slot is discarded. A candidate slot is
// dropped when it overlaps any active appointment under the half-open test
// overlap == !(slotEnd <= apptStart || slotStart >= apptEnd). Appointments
// are not clipped to the window: one that starts earlier or runs later still
// blocks every slot it touches, and one longer than a slot blocks several.
func FreeSlots(tpl *ScheduleTemplate, date time.Time, appts []Appointment) []MinuteOfDay {
	if tpl == nil || !tpl.Active || tpl.SlotMinutes <= 0 || tpl.EndMinute <= tpl.StartMinute {
		return nil
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	busy := make([]busyInterval, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		if !a.Status.Active() || a.DurationMinutes <= 0 {
			continue
		}
		start := int(a.StartsAt.In(date.Location()).Sub(midnight) / time.Minute)
		busy = append(busy, busyInterval{start: start, end: start + a.DurationMinutes})
	}

	var free []MinuteOfDay
	for s := int(tpl.StartMinute); s+tpl.SlotMinutes <= int(tpl.EndMinute); s += tpl.SlotMinutes {
		slotEnd := s + tpl.SlotMinutes
		blocked := false
		for _, b := range busy {
			if !(slotEnd <= b.start || s >= b.end) {
				blocked = true
				break
			}
		}
		if !blocked {
			free = append(free, MinuteOfDay(s))
		}
	}
	return free
}

// ClockStrings formats slot starts as "HH:MM" for JSON responses.
func ClockStrings(slots []MinuteOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Clock())
	}
	return out
}
