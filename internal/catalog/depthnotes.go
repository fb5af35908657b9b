package catalog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Depth wording seen in the "where they live" profile prose. Ranges
// are tried first, then one-sided phrasings.
var (
	depthRangeRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(?:to|through|[-–—])\s*(\d[\d,]*(?:\.\d+)?)\s*(m|meters?|metres?|ft|feet)\b`)
	depthCeilRe  = regexp.MustCompile(`(?i)(?:up to|shallower than|less than|within)\s+(\d[\d,]*(?:\.\d+)?)\s*(m|meters?|metres?|ft|feet)\b`)
	depthFloorRe = regexp.MustCompile(`(?i)(?:deeper than|below|depths? (?:greater|of more) than)\s+(\d[\d,]*(?:\.\d+)?)\s*(m|meters?|metres?|ft|feet)\b`)
)

// ParseDepthRange pulls habitat depth bounds in metres out of prose
// notes. A range yields both bounds; "up to"-style wording yields a
// surface-to-ceiling range; "deeper than"-style wording yields only a
// lower bound. Nil results mean the notes said nothing usable.
func ParseDepthRange(notes string) (min, max *float64) {
	if m := depthRangeRe.FindStringSubmatch(notes); m != nil {
		lo := toMeters(m[1], m[3])
		hi := toMeters(m[2], m[3])
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi
	}
	if m := depthCeilRe.FindStringSubmatch(notes); m != nil {
		surface := 0.0
		hi := toMeters(m[1], m[2])
		return &surface, &hi
	}
	if m := depthFloorRe.FindStringSubmatch(notes); m != nil {
		lo := toMeters(m[1], m[2])
		return &lo, nil
	}
	return nil, nil
}

// toMeters parses a matched quantity, converting feet when the unit
// calls for it. Values keep one decimal.
func toMeters(num, unit string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if strings.HasPrefix(strings.ToLower(unit), "f") {
		v *= 0.3048
	}
	return math.Round(v*10) / 10
}
