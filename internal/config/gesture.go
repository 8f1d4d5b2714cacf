package config

import (
	"mtevent/internal/gesture"
)

// Screen returns the configured touch surface
func (g GestureConfig) Screen() gesture.Screen {
	return gesture.Screen{
		Width:   g.ScreenWidth,
		Height:  g.ScreenHeight,
		InvertY: g.InvertY,
	}
}

// TrackingIDs returns a new id source for the configured mode
func (g GestureConfig) TrackingIDs() gesture.TrackingIDs {
	if g.TrackingID == TrackingIDCounter {
		return gesture.NewCounterIDs(g.TrackingIDStart)
	}
	return &gesture.ClockIDs{}
}

// NewGenerator builds a tap generator from the gesture settings
func (g GestureConfig) NewGenerator() *gesture.Generator {
	opts := []gesture.Option{
		gesture.WithScreen(g.Screen()),
		gesture.WithTrackingIDs(g.TrackingIDs()),
	}
	if g.Timestamp != 0 {
		opts = append(opts, gesture.WithFixedTime(g.Timestamp))
	}
	return gesture.NewGenerator(opts...)
}

// DefaultTap returns the configured default tap
func (g GestureConfig) DefaultTap() gesture.Tap {
	return gesture.Tap{X: g.X, Y: g.Y, Pressure: g.Pressure}
}
