package analysis

import (
	"fmt"
	"math"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Commentary generation.
//
// Phrasing is a pure function of the coefficient sign, its magnitude band
// and the significance grade, so identical inputs always produce identical
// text. The wording stays firmly tongue-in-cheek: pigeons do not move
// markets, and the copy must never suggest otherwise.
// -----------------------------------------------------------------------------

// Commentary renders a deterministic one-liner for a correlation result.
func Commentary(r, p float64, significance models.MSignificance) string {
	if significance == models.SignificanceNone {
		return "The pigeons and the charts appear to be ignoring each other entirely."
	}

	direction := "rises with"
	if r < 0 {
		direction = "moves against"
	}

	var strength string
	switch absR := math.Abs(r); {
	case absR >= 0.7:
		strength = "a striking"
	case absR >= 0.4:
		strength = "a moderate"
	default:
		strength = "a faint"
	}

	return fmt.Sprintf(
		"Pigeon activity %s the market with %s correlation (r=%.2f, p=%.3f, %s confidence). Correlation is not causation, least of all here.",
		direction, strength, r, p, significance,
	)
}
