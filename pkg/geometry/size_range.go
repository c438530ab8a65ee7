package geometry

import (
	"fmt"
	"math"
)

// SizeRange is the minimum/maximum constraint pair a component is laid out against.
type SizeRange struct {
	Min Size
	Max Size
}

// SizeRangeFromBounds returns the range a hosting container grants its content:
// anything from zero up to the container bounds.
//
// Zero, negative and NaN extents are legitimate and produce an empty range.
func SizeRangeFromBounds(bounds Size) SizeRange {
	return SizeRange{
		Max: Size{Width: extent(bounds.Width), Height: extent(bounds.Height)},
	}
}

// Tight returns a range that only admits size.
func Tight(size Size) SizeRange {
	s := Size{Width: extent(size.Width), Height: extent(size.Height)}
	return SizeRange{Min: s, Max: s}
}

// IsEmpty reports whether the range has no extent on either axis. A range
// such as {0,0}-{0,480} is not empty.
func (r SizeRange) IsEmpty() bool {
	return r.Max.Width <= 0 && r.Max.Height <= 0
}

// Contains reports whether size lies inside the range.
func (r SizeRange) Contains(size Size) bool {
	return size.Width >= r.Min.Width-epsilon && size.Width <= r.Max.Width+epsilon &&
		size.Height >= r.Min.Height-epsilon && size.Height <= r.Max.Height+epsilon
}

// Constrain clamps size into the range. NaN dimensions collapse to the minimum.
func (r SizeRange) Constrain(size Size) Size {
	return Size{
		Width:  clamp(size.Width, r.Min.Width, r.Max.Width),
		Height: clamp(size.Height, r.Min.Height, r.Max.Height),
	}
}

func (r SizeRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}
