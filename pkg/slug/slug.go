package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Latin letters with diacritics seen in tour and offer names.
	fold = strings.NewReplacer(
		"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"í", "i", "ì", "i", "î", "i", "ï", "i", "ı", "i",
		"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
		"ú", "u", "ù", "u", "û", "u", "ü", "u",
		"ç", "c", "ğ", "g", "ñ", "n", "ş", "s", "ß", "ss",
	)
)

// Generate creates a lowercase URL slug: "Été à Paris!" → "ete-a-paris".
func Generate(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Code normalizes a promo code for storage and comparison: trimmed,
// diacritics folded, uppercase, runs of separators collapsed to '-'.
// " summer sale " and "SUMMER-SALE" normalize to the same code.
func Code(code string) string {
	return strings.ToUpper(Generate(code))
}
