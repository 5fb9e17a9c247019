// Package resolve canonicalizes free-text entity names and tender text into
// stable grouping keys.
package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tenderedge/postaward/internal/model"
)

// legalTokens are whole words removed from company names before grouping:
// legal-entity forms and the country variants that suppliers append.
var legalTokens = map[string]bool{
	"ltd": true, "limited": true,
	"co": true, "company": true,
	"corporation": true, "corp": true,
	"inc": true, "llc": true, "plc": true,
	"pvt": true, "private": true,
	"tanzania": true, "tz": true,
}

var (
	// dottedCountryRe matches "t.z." only where it starts a word.
	dottedCountryRe = regexp.MustCompile(`(^|[^\p{L}\p{M}\p{N}_])t\.z\.`)
	// nonWordRe keeps combining marks inside words; title-casing can emit them.
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_]+`)
)

// NormalizeCompany turns a raw company name into the canonical key used for
// competitor grouping:
//  1. Lower-casing
//  2. Removing legal-entity and country tokens as whole words
//  3. Replacing punctuation and whitespace runs with a single space
//  4. Title-casing
//
// Empty input, or input made only of stripped tokens, yields model.UnknownEntity.
// The function is pure and NormalizeCompany(NormalizeCompany(x)) == NormalizeCompany(x).
func NormalizeCompany(name string) string {
	name = strings.ToLower(name)
	name = dottedCountryRe.ReplaceAllString(name, "$1 ")

	words := nonWordRe.Split(name, -1)
	kept := words[:0]
	for _, w := range words {
		if w != "" && !legalTokens[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return model.UnknownEntity
	}
	// A Caser carries state, so each call gets its own.
	return cases.Title(language.Und).String(strings.Join(kept, " "))
}

// IsUnknown reports whether a raw name resolves to the unknown sentinel.
func IsUnknown(name string) bool {
	return NormalizeCompany(name) == model.UnknownEntity
}
