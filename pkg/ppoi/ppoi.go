// Package ppoi models the primary point of interest of a source image: a
// normalized focal point that crop-aware pipeline steps keep in frame.
package ppoi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a normalized focal point. X and Y are fractions of the image
// width and height, both in [0, 1].
type Point struct {
	X float64
	Y float64
}

// Center is the default focal point when none is stored for a source.
var Center = Point{X: 0.5, Y: 0.5}

// Normalize clamps the given coordinates into [0, 1]. NaN or infinite
// components fall back to the center rather than failing.
func Normalize(x, y float64) Point {
	return Point{X: clampUnit(x, Center.X), Y: clampUnit(y, Center.Y)}
}

// Parse decodes the stored string form "0.5x0.5". Malformed input yields
// Center; out-of-range components are clamped.
func Parse(s string) Point {
	parts := strings.SplitN(strings.TrimSpace(s), "x", 2)
	if len(parts) != 2 {
		return Center
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return Center
	}
	return Normalize(x, y)
}

// String renders the stored form, e.g. "0.5x0.5".
func (p Point) String() string {
	return fmt.Sprintf("%gx%g", p.X, p.Y)
}

// Pixel maps the normalized point onto an image of the given dimensions.
func (p Point) Pixel(width, height int) (int, int) {
	return int(float64(width) * p.X), int(float64(height) * p.Y)
}

func clampUnit(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
