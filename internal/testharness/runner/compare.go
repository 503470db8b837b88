package runner

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// trimValue strips NUL bytes and whitespace from both ends of a sysfs read.
func trimValue(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}

// equalValues compares an expected and a live value the way the power HAL
// writes them: surrounding NULs and whitespace are ignored, letter case is
// folded ("1BC560" equals "1bc560").
func equalValues(expected, live string) bool {
	fold := cases.Fold()
	return fold.String(trimValue(expected)) == fold.String(trimValue(live))
}
