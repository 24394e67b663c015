package layout

import (
	"fmt"
	"math"
)

// Size is a width/height pair in layout points.
type Size struct {
	Width  float64
	Height float64
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// Constraints bound the sizes a surface may occupy.
type Constraints struct {
	Min Size
	Max Size
}

// NewConstraints normalizes min/max so Min never exceeds Max per axis.
func NewConstraints(min, max Size) Constraints {
	return Constraints{
		Min: Size{
			Width:  math.Min(min.Width, max.Width),
			Height: math.Min(min.Height, max.Height),
		},
		Max: Size{
			Width:  math.Max(min.Width, max.Width),
			Height: math.Max(min.Height, max.Height),
		},
	}
}

// Clamp fits a candidate size inside the constraints.
func (c Constraints) Clamp(s Size) Size {
	return Size{
		Width:  math.Min(math.Max(s.Width, c.Min.Width), c.Max.Width),
		Height: math.Min(math.Max(s.Height, c.Min.Height), c.Max.Height),
	}
}

// Contains reports whether s already satisfies the constraints.
func (c Constraints) Contains(s Size) bool {
	return s.Width >= c.Min.Width && s.Width <= c.Max.Width &&
		s.Height >= c.Min.Height && s.Height <= c.Max.Height
}

// Context carries display parameters the computation engine needs to resolve
// point sizes into device pixels.
type Context struct {
	ScaleFactor float64
}

// DefaultContext assumes an unscaled display.
func DefaultContext() Context {
	return Context{ScaleFactor: 1.0}
}
