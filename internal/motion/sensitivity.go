package motion

import (
	"fmt"
	"strings"
)

// Sensitivity is the single public tuning knob.
type Sensitivity string

const (
	Low    Sensitivity = "low"
	Medium Sensitivity = "medium"
	High   Sensitivity = "high"
)

// Params are the detector settings a sensitivity selects. MinArea is in
// pixels at the 640x480 reference resolution.
type Params struct {
	VarThreshold float64
	MinArea      int
	History      int
}

var sensitivityTable = map[Sensitivity]Params{
	Low:    {VarThreshold: 70, MinArea: 8000, History: 200},
	Medium: {VarThreshold: 50, MinArea: 5000, History: 500},
	High:   {VarThreshold: 30, MinArea: 2000, History: 1000},
}

// ParseSensitivity accepts low, medium or high in any case.
func ParseSensitivity(value string) (Sensitivity, error) {
	s := Sensitivity(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := sensitivityTable[s]; !ok {
		return "", fmt.Errorf("unknown motion sensitivity %q (expected low, medium, or high)", value)
	}
	return s, nil
}

// Params returns the table entry, defaulting to medium.
func (s Sensitivity) Params() Params {
	if p, ok := sensitivityTable[s]; ok {
		return p
	}
	return sensitivityTable[Medium]
}
