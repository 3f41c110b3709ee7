package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a name for comparison (lowercase, no diacritics,
// spaces for dashes, single spaces).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// skipSentinels are placeholder labels used while reviewing clusters.
var skipSentinels = []string{"skip", "sk", "???", "this one is blank", "no idea", "need to review"}

// IsValidName reports whether name identifies a person. Empty names and names
// equal to or containing a review placeholder (case-insensitive) are not
// valid. "sk" counts as a placeholder too, so any name containing "sk" is
// rejected.
func IsValidName(name string) bool {
	normalized := strings.ToLower(RemoveDiacritics(strings.TrimSpace(name)))
	if normalized == "" {
		return false
	}
	for _, sentinel := range skipSentinels {
		if strings.Contains(normalized, sentinel) {
			return false
		}
	}
	return true
}
