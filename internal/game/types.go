package game

import (
	"chosenoffset.com/lightcone/internal/core/shadows"
)

// Player represents the player's physical state in the world.
type Player struct {
	Pos    shadows.Point
	Facing float64 // radians, toward the cursor
	Speed  float64 // pixels per second
	Radius float64
}

// Camera tracks the viewport position for scrolling large levels.
type Camera struct {
	X, Y float64 // Camera position (top-left corner of viewport in world coords)
}

// Message represents an on-screen message that fades over time.
type Message struct {
	Text     string
	TimeLeft float64 // Seconds remaining
	MaxTime  float64 // Initial duration
}
