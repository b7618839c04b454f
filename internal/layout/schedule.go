package layout

import (
	"time"

	"github.com/cheminotify/agent/internal/coords"
)

// Slot is a time-of-day row on the schedule tab.
type Slot int

const (
	Morning Slot = iota
	Afternoon
	Evening
)

func (s Slot) String() string {
	switch s {
	case Morning:
		return "AM"
	case Afternoon:
		return "PM"
	case Evening:
		return "EV"
	}
	return "Slot(?)"
}

// Column x and row y of the weekly grid (RefMain). Friday sits left of
// Thursday in the client's layout.
var (
	dayX = map[time.Weekday]int{
		time.Monday:    113,
		time.Tuesday:   201,
		time.Wednesday: 300,
		time.Thursday:  391,
		time.Friday:    378,
		time.Saturday:  571,
	}
	slotY = [...]int{Morning: 209, Afternoon: 292, Evening: 367}
)

// SchedulePoint returns the grid cell for a day and slot. Sunday has no column.
func SchedulePoint(day time.Weekday, slot Slot) (coords.Point, bool) {
	x, ok := dayX[day]
	if !ok || slot < Morning || slot > Evening {
		return coords.Point{}, false
	}
	return coords.Point{X: x, Y: slotY[slot]}, true
}
