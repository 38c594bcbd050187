// Package geometry computes shot distance and angle relative to the net.
package geometry

import "math"

// NetX is the x coordinate of the goal line the net sits on.
const NetX = 89.0

// Compute returns the distance in feet, rounded to the nearest integer, and
// the angle from the net in degrees. Distance folds both ends of the rink
// onto one net; the angle keeps the signed x term, so shots from behind the
// net report angles above 90. Either coordinate missing yields nil for both.
func Compute(x, y *float64) (*int, *float64) {
	if x == nil || y == nil {
		return nil, nil
	}
	d := Distance(*x, *y)
	a := Angle(*x, *y)
	return &d, &a
}

// Distance is the euclidean distance from (x, y) to the nearer net, rounded
// half to even.
func Distance(x, y float64) int {
	dx := NetX - math.Abs(x)
	return int(math.RoundToEven(math.Sqrt(dx*dx + y*y)))
}

// Angle is the angle in degrees between the shot location and the net axis.
func Angle(x, y float64) float64 {
	return math.Atan2(math.Abs(y), NetX-x) * 180 / math.Pi
}
