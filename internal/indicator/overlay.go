package indicator

import (
	"time"

	"kbd-indicator/internal/types"
)

const (
	barWindow     = 2500 * time.Millisecond
	barRevealStep = 125 * time.Millisecond

	lowBatteryLevel = 45
	zeroDigitLED    = 23
)

// barLEDs are the number row, left to right. A segment at rank r (1-based)
// lights once r*barRevealStep has elapsed.
var barLEDs = [10]int{32, 31, 30, 29, 28, 27, 26, 25, 24, 23}

type flashWindow struct {
	start, end, restart time.Duration
}

var (
	tensWindow = flashWindow{1750 * time.Millisecond, 2000 * time.Millisecond, 2250 * time.Millisecond}
	onesWindow = flashWindow{1800 * time.Millisecond, 2000 * time.Millisecond, 2300 * time.Millisecond}
)

// Overlay draws the battery level: a 10 segment bar that fills left to
// right, then the tens digit on the function row and the ones digit on the
// number row.
type Overlay struct {
	started time.Time
	level   uint8
	pending bool
}

func NewOverlay() *Overlay {
	return &Overlay{}
}

// Start records a battery query.
func (o *Overlay) Start(now time.Time, level uint8) {
	if level > 100 {
		level = 100
	}
	o.started = now
	o.level = level
	o.pending = true
}

func (o *Overlay) Pending() bool {
	return o.pending
}

func (o *Overlay) Level() uint8 {
	return o.level
}

// Clear drops the query so nothing is rendered until the next Start.
func (o *Overlay) Clear() {
	o.pending = false
	o.level = 0
	o.started = time.Time{}
}

// Render paints the overlay for now using color for the bar.
func (o *Overlay) Render(now time.Time, color types.RGB, p Painter) {
	if !o.pending {
		return
	}
	elapsed := now.Sub(o.started)

	if elapsed < barWindow {
		for _, idx := range barLEDs {
			p.SetColor(idx, types.Off)
		}
		filled := int(o.level / 10)
		for i := 0; i < len(barLEDs) && i < filled; i++ {
			if time.Duration(i+1)*barRevealStep < elapsed {
				p.SetColor(barLEDs[i], color)
			}
		}
	}

	tens, ones := DigitLEDs(o.level)
	digit := DigitColor(o.level)
	if tensWindow.lit(elapsed) {
		p.SetColor(tens, digit)
	}
	if onesWindow.lit(elapsed) {
		p.SetColor(ones, digit)
	}
}

func (w flashWindow) lit(elapsed time.Duration) bool {
	return elapsed > w.restart || (elapsed > w.start && elapsed < w.end)
}

// DigitLEDs maps a level to the function-key LED showing the tens digit and
// the number-key LED showing the ones digit. The function row starts at F1
// on index 1; the number row counts down from 1 on index 32 to 0 on 23.
func DigitLEDs(level uint8) (tens, ones int) {
	tens = int(level / 10)
	if level%10 == 0 {
		ones = zeroDigitLED
	} else {
		ones = 33 - int(level%10)
	}
	return tens, ones
}

// DigitColor is magenta at or below the low battery threshold.
func DigitColor(level uint8) types.RGB {
	if level > lowBatteryLevel {
		return types.LightBlue
	}
	return types.Magenta
}

// QueryColor picks the side light color for a battery query.
func QueryColor(level uint8) types.RGB {
	switch {
	case level > 55:
		return types.Green
	case level > 50:
		return types.Yellow
	case level > 45:
		return types.Orange
	default:
		return types.Red
	}
}
