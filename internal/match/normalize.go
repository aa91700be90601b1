// Package match implements company-name normalization and fuzzy similarity
// scoring used by list-screening adapters.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes strips trailing legal-form markers before matching. EU and US
// forms both appear in sanctions data.
var legalSuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*(GMBH|G\.?M\.?B\.?H\.?|AG|A\.?G\.?|KG|KGAA|GMBH\s*&\s*CO\.?\s*KG|UG|E\.?V\.?|` +
		`SE|SA|S\.?A\.?|SARL|S\.?A\.?R\.?L\.?|SRL|S\.?R\.?L\.?|SPA|S\.?P\.?A\.?|BV|B\.?V\.?|NV|N\.?V\.?|` +
		`OY|AB|AS|A/S|APS|SP\.?\s*Z\s*O\.?O\.?|` +
		`LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|CO\.?|COMPANY|` +
		`LTD\.?|LIMITED|L\.?P\.?|LLP|L\.?L\.?P\.?|PLC|P\.?L\.?C\.?)\s*\.?\s*$`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// foldDiacritics removes combining marks after NFD decomposition, so that
// "Müller" and "MUELLER"-free "MULLER" compare equal.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes an entity name for matching:
//  1. fold diacritics to ASCII-ish base letters
//  2. uppercase and trim
//  3. strip one trailing legal-form suffix (GmbH, AG, Ltd, LLC, ...)
//  4. replace punctuation, map "&" to "AND"
//  5. collapse runs of whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldDiacritics, name); err == nil {
		name = folded
	}

	name = strings.ToUpper(name)
	name = legalSuffixes.ReplaceAllString(name, "")

	name = strings.NewReplacer(
		",", " ",
		".", " ",
		"'", "",
		"\"", "",
		"&", " AND ",
		"-", " ",
		"/", " ",
		"(", " ",
		")", " ",
	).Replace(name)

	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
