// Package utils contains small shared helpers for angles and bounds.
package utils

import "math"

func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp keeps value within [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Math.pow( x, 2 ) is slow, this is faster
func Square(n float64) float64 {
	return n * n
}

// Finite reports whether n is neither NaN nor infinite.
func Finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}
