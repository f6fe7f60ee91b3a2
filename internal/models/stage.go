package models

import "strings"

// Canonical sleep stage names (Fitbit API vocabulary).
const (
	StageWake  = "wake"
	StageLight = "light"
	StageDeep  = "deep"
	StageREM   = "rem"
)

// stageMap maps lowercased stage labels to their canonical names. Fitbit
// JSON exports use the API constants, but Health Sync CSVs localize labels
// to the phone language. Covers: English, German, French, Spanish,
// Portuguese, Dutch, Italian.
var stageMap = map[string]string{
	// English
	"wake":     StageWake,
	"awake":    StageWake,
	"restless": StageWake,
	"light":    StageLight,
	"core":     StageLight,
	"deep":     StageDeep,
	"rem":      StageREM,

	// German
	"wach":   StageWake,
	"leicht": StageLight,
	"tief":   StageDeep,

	// French
	"éveillé":   StageWake,
	"eveille":   StageWake,
	"léger":     StageLight,
	"leger":     StageLight,
	"profond":   StageDeep,
	"paradoxal": StageREM,

	// Spanish / Portuguese
	"despierto": StageWake,
	"despierta": StageWake,
	"acordado":  StageWake,
	"ligero":    StageLight,
	"leve":      StageLight,
	"profundo":  StageDeep,

	// Dutch
	"wakker": StageWake,
	"licht":  StageLight,
	"diep":   StageDeep,

	// Italian
	"sveglio":  StageWake,
	"leggero":  StageLight,
	"profondo": StageDeep,
}

// NormalizeStage maps a raw stage label to its canonical name.
// Returns the canonical name and true, or "" and false for unknown labels.
func NormalizeStage(raw string) (string, bool) {
	canonical, ok := stageMap[strings.ToLower(strings.TrimSpace(raw))]
	return canonical, ok
}
