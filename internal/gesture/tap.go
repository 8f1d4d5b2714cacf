// Package gesture synthesizes multi-touch record sequences.
package gesture

import (
	"errors"
	"fmt"
	"time"

	"mtevent/internal/event"
)

// ErrOutOfBounds is returned when a tap lies outside the configured screen
var ErrOutOfBounds = errors.New("tap outside screen bounds")

// Tap describes one touch-down/lift gesture
type Tap struct {
	X        uint32
	Y        uint32
	Pressure uint32
}

// Screen is the touch surface geometry. A zero Width or Height disables bounds checks.
type Screen struct {
	Width   uint32
	Height  uint32
	InvertY bool // Input coordinates count Y from the bottom edge
}

// Contains reports whether the tap lies on the screen
func (s Screen) Contains(t Tap) bool {
	if s.Width == 0 || s.Height == 0 {
		return true
	}
	return t.X < s.Width && t.Y < s.Height
}

// Generator builds tap sequences. The zero value is not usable; use NewGenerator.
type Generator struct {
	clock  func() uint64
	ids    TrackingIDs
	screen Screen
}

// Option configures a Generator
type Option func(*Generator)

// WithClock sets the timestamp source. It is called once per gesture.
func WithClock(clock func() uint64) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithFixedTime stamps every gesture with the same timestamp
func WithFixedTime(ts uint64) Option {
	return WithClock(func() uint64 { return ts })
}

// WithTrackingIDs sets the tracking id source
func WithTrackingIDs(ids TrackingIDs) Option {
	return func(g *Generator) {
		g.ids = ids
	}
}

// WithScreen sets the screen used for bounds checks and Y inversion
func WithScreen(s Screen) Option {
	return func(g *Generator) {
		g.screen = s
	}
}

// TimevalStamp packs t the way a 32-bit device lays out struct timeval in the time
// field: seconds in the low word, microseconds in the high word.
func TimevalStamp(t time.Time) uint64 {
	sec := uint32(t.Unix())
	usec := uint32(t.Nanosecond() / 1000)
	return uint64(usec)<<32 | uint64(sec)
}

// NewGenerator creates a generator. Defaults: wall-clock timestamps packed with
// TimevalStamp, clock-seeded tracking ids, no screen bounds.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		clock: func() uint64 { return TimevalStamp(time.Now()) },
		ids:   &ClockIDs{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tap returns the records of one tap-and-release gesture. All records share a single
// timestamp snapshot.
func (g *Generator) Tap(t Tap) ([]event.Record, error) {
	if !g.screen.Contains(t) {
		return nil, fmt.Errorf("%w: (%d, %d) on %dx%d", ErrOutOfBounds, t.X, t.Y, g.screen.Width, g.screen.Height)
	}

	y := t.Y
	if g.screen.InvertY {
		y = g.screen.Height - t.Y
	}

	ts := g.clock()
	return []event.Record{
		{Time: ts, Code: event.SynReport, Value: 0},
		{Time: ts, Code: event.AbsMTTrackingID, Value: g.ids.Next()},
		{Time: ts, Code: event.AbsMTPositionX, Value: t.X},
		{Time: ts, Code: event.AbsMTPositionY, Value: y},
		{Time: ts, Code: event.AbsMTPressure, Value: t.Pressure},
		{Time: ts, Code: event.SynReport, Value: 0},
		{Time: ts, Code: event.AbsMTTrackingID, Value: event.TrackingIDRelease},
		{Time: ts, Code: event.SynReport, Value: 0},
	}, nil
}

// Taps concatenates the sequences of several taps. Each tap gets its own timestamp
// and tracking id.
func (g *Generator) Taps(taps ...Tap) ([]event.Record, error) {
	var out []event.Record
	for i, t := range taps {
		recs, err := g.Tap(t)
		if err != nil {
			return nil, fmt.Errorf("tap %d: %w", i, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}
