// Package nav synthesizes drivable routes from node paths: merged polyline
// geometry, cumulative distance and time timelines, and turn-by-turn steps.
package nav

import (
	"regexp"
	"strconv"
	"strings"
)

const mphToKPH = 1.60934

// defaultSpeedKPH maps highway classes to assumed speeds when no usable
// maxspeed tag is present.
var defaultSpeedKPH = map[string]float64{
	"motorway":    100,
	"trunk":       80,
	"primary":     70,
	"secondary":   60,
	"tertiary":    55,
	"residential": 50,
	"service":     35,
}

const fallbackSpeedKPH = 50

var maxspeedNumber = regexp.MustCompile(`\d+(\.\d+)?`)

// parseMaxspeedKPH extracts a numeric speed from a raw maxspeed tag,
// converting mph values to km/h. Tags like "signals" or "none" yield false.
func parseMaxspeedKPH(raw string) (float64, bool) {
	m := maxspeedNumber.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.Contains(strings.ToLower(raw), "mph") {
		v *= mphToKPH
	}
	return v, true
}

// scenarioMultiplier scales assumed speeds for emergency response driving.
func scenarioMultiplier(scenario string) float64 {
	switch strings.ToUpper(scenario) {
	case "ARREST", "CARDIAC":
		return 1.10
	case "TRAUMA":
		return 1.05
	default:
		return 1.0
	}
}

// speedKPH resolves the travel speed for an edge: parsed maxspeed tag first,
// then the highway-class default, scaled by the scenario.
func speedKPH(maxspeed, highway, scenario string) float64 {
	v, ok := parseMaxspeedKPH(maxspeed)
	if !ok {
		v, ok = defaultSpeedKPH[highway]
		if !ok {
			v = fallbackSpeedKPH
		}
	}
	return v * scenarioMultiplier(scenario)
}
