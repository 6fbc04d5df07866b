package world

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var trailingParenthetical = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// matchProvince returns the index of the province target refers to, or -1.
// Rules are tried in order across all provinces and the first hit wins:
//  1. case-insensitive name equality
//  2. name starts with "<target> (" (region suffixes like "Texas (USA)")
//  3. name without its trailing parenthetical equals target, case-insensitively
//  4. a whole-country province whose parent country name equals target
func matchProvince(provinces []Province, target string) int {
	target = strings.TrimSpace(target)
	if target == "" {
		return -1
	}
	want := foldKey(target)

	for i, p := range provinces {
		if foldKey(p.Name) == want {
			return i
		}
	}
	prefix := target + " ("
	for i, p := range provinces {
		if strings.HasPrefix(p.Name, prefix) {
			return i
		}
	}
	for i, p := range provinces {
		if foldKey(trailingParenthetical.ReplaceAllString(p.Name, "")) == want {
			return i
		}
	}
	for i, p := range provinces {
		if !p.IsSubNational && p.ParentCountryName != "" && foldKey(p.ParentCountryName) == want {
			return i
		}
	}
	return -1
}

// foldKey normalizes a display name for comparison. A Caser is stateful,
// so one is created per call.
func foldKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
