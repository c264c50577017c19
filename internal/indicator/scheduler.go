// Package indicator multiplexes the single RGB notification slot onto the
// LED frame buffer.
package indicator

import (
	"time"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

const (
	// GroupAnchor is the logical index of the side light bar. Targeting it
	// paints GroupAnchor..GroupAnchor+GroupSize-1 in lock-step.
	GroupAnchor = 92
	GroupSize   = 11

	groupOnDivisor  = 10
	groupOffDivisor = 12
)

// overlayAnchors are the request indices that carry the battery overlay.
var overlayAnchors = [...]int{0, GroupAnchor}

// Painter receives colors for physical LED indices. Out-of-range indices
// are the painter's problem.
type Painter interface {
	SetColor(index int, c types.RGB)
}

// Completion is returned by the completion callback.
type Completion int

const (
	NotHandled Completion = iota
	Handled
)

// Request is the one active blink notification.
type Request struct {
	Index    int
	Color    types.RGB
	Interval time.Duration
	// Remaining counts half-cycles. Odd values paint the on phase.
	Remaining int
}

type Option func(*Scheduler)

// WithDeviceSource selects the device whose LED glows while idle.
func WithDeviceSource(fn func() types.DeviceID) Option {
	return func(s *Scheduler) { s.device = fn }
}

// WithCompletion sets the callback run when a request runs out of
// half-cycles. Returning Handled skips painting for that frame.
func WithCompletion(fn func() Completion) Option {
	return func(s *Scheduler) { s.complete = fn }
}

func WithOverlay(o *Overlay) Option {
	return func(s *Scheduler) { s.overlay = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler owns the single indicator slot. It is not safe for concurrent
// use; callers serialize Set and Tick.
type Scheduler struct {
	logger   *logger.Logger
	now      func() time.Time
	device   func() types.DeviceID
	complete func() Completion
	overlay  *Overlay

	active  bool
	flipped time.Time
	req     Request
}

// NewScheduler returns an idle scheduler.
func NewScheduler(l *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: l,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set replaces the active request. Each cycle is an on and an off phase.
func (s *Scheduler) Set(index int, color types.RGB, interval time.Duration, cycles int) {
	if s.active {
		s.logger.Debugf("Replacing indicator on LED %d (%d half-cycles left)", s.req.Index, s.req.Remaining)
	}
	s.req = Request{
		Index:     index,
		Color:     color,
		Interval:  interval,
		Remaining: cycles * 2,
	}
	s.flipped = s.now()
	s.active = true
	s.logger.Debugf("Indicator set: led=%d color=%v interval=%v cycles=%d", index, color, interval, cycles)
}

// Active reports whether a request occupies the slot.
func (s *Scheduler) Active() bool {
	return s.active
}

// Current returns the active request.
func (s *Scheduler) Current() (Request, bool) {
	return s.req, s.active
}

// Tick advances the slot to now and paints it. It runs once per frame.
func (s *Scheduler) Tick(now time.Time, p Painter) {
	if !s.active {
		s.paintSteady(p)
		return
	}

	if now.Sub(s.flipped) >= s.req.Interval {
		s.flipped = now
		if s.req.Remaining > 0 {
			s.req.Remaining--
		}
		if s.req.Remaining <= 0 {
			s.finish()
			if s.complete != nil && s.complete() == Handled {
				return
			}
		}
	}

	s.paintRequest(p)

	if s.overlay != nil && s.overlay.Pending() && isOverlayAnchor(s.req.Index) {
		s.overlay.Render(now, s.req.Color, p)
	}
}

func (s *Scheduler) finish() {
	s.active = false
	if s.overlay != nil && isOverlayAnchor(s.req.Index) {
		s.overlay.Clear()
	}
	s.logger.Debugf("Indicator on LED %d finished", s.req.Index)
}

func (s *Scheduler) paintRequest(p Painter) {
	on := s.req.Remaining%2 == 1

	if s.req.Index == GroupAnchor {
		c := s.req.Color.Scale(groupOffDivisor)
		if on {
			c = s.req.Color.Scale(groupOnDivisor)
		}
		for i := GroupAnchor; i < GroupAnchor+GroupSize; i++ {
			p.SetColor(i, c)
		}
		return
	}

	if on {
		p.SetColor(s.req.Index, s.req.Color)
	} else {
		p.SetColor(s.req.Index, types.Off)
	}
}

func (s *Scheduler) paintSteady(p Painter) {
	if s.device == nil {
		return
	}
	if idx, ok := s.device().IndicatorLED(); ok {
		p.SetColor(idx, types.DimWhite)
	}
}

func isOverlayAnchor(index int) bool {
	for _, a := range overlayAnchors {
		if index == a {
			return true
		}
	}
	return false
}
