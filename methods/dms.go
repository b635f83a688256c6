package methods

import (
	"fmt"
	"math"
)

type Axis int

const (
	Lat Axis = iota
	Lon
)

// DecimalToDMS 十进制度转度分秒，形如 15° 30' 0.0000" S
func DecimalToDMS(v float64, axis Axis) string {
	positive := v >= 0
	abs := math.Abs(v)
	deg := int(abs)
	minFull := (abs - float64(deg)) * 60
	minutes := int(minFull)
	sec := (minFull - float64(minutes)) * 60
	var dir string
	switch {
	case axis == Lat && positive:
		dir = "N"
	case axis == Lat:
		dir = "S"
	case positive:
		dir = "E"
	default:
		dir = "W"
	}
	return fmt.Sprintf("%d° %d' %.4f\" %s", deg, minutes, sec, dir)
}
