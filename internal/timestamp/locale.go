package timestamp

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// monthNames maps accent-folded, lowercased Spanish, Portuguese, French and
// German month names to their English abbreviation.
var monthNames = map[string]string{
	// es
	"enero": "Jan", "ene": "Jan", "febrero": "Feb", "marzo": "Mar", "abril": "Apr", "abr": "Apr",
	"mayo": "May", "junio": "Jun", "julio": "Jul", "agosto": "Aug", "ago": "Aug",
	"septiembre": "Sep", "setiembre": "Sep", "octubre": "Oct", "noviembre": "Nov", "diciembre": "Dec", "dic": "Dec",
	// pt
	"janeiro": "Jan", "fevereiro": "Feb", "fev": "Feb", "marco": "Mar", "maio": "May", "junho": "Jun",
	"julho": "Jul", "setembro": "Sep", "set": "Sep", "outubro": "Oct", "out": "Oct", "novembro": "Nov",
	"dezembro": "Dec", "dez": "Dec",
	// fr
	"janvier": "Jan", "janv": "Jan", "fevrier": "Feb", "fevr": "Feb", "mars": "Mar", "avril": "Apr", "avr": "Apr",
	"mai": "May", "juin": "Jun", "juillet": "Jul", "juil": "Jul", "aout": "Aug", "septembre": "Sep",
	"octobre": "Oct", "novembre": "Nov", "decembre": "Dec",
	// de
	"januar": "Jan", "februar": "Feb", "marz": "Mar", "mrz": "Mar", "juni": "Jun", "juli": "Jul",
	"august": "Aug", "oktober": "Oct", "okt": "Oct", "dezember": "Dec",
}

// connectors are dropped once a localized month name has been found.
var connectors = map[string]bool{
	"de": true, "del": true, "a": true, "las": true, "los": true, "le": true, "as": true, "um": true,
}

var wordRe = regexp.MustCompile(`\p{L}+\.?`)
var spaceRe = regexp.MustCompile(`\s+`)
var dayDotRe = regexp.MustCompile(`\b(\d{1,2})\.\s`)

var lower = cases.Lower(language.Und)

// fold strips diacritics and lowercases s.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return lower.String(out)
}

// translateMonths rewrites localized month names into English so the layout
// table and dateparse can read them. Text without a localized month name is
// returned unchanged.
func translateMonths(s string) string {
	found := false
	for _, w := range wordRe.FindAllString(s, -1) {
		if _, ok := monthNames[strings.TrimSuffix(fold(w), ".")]; ok {
			found = true
			break
		}
	}
	if !found {
		return s
	}

	out := wordRe.ReplaceAllStringFunc(s, func(w string) string {
		key := strings.TrimSuffix(fold(w), ".")
		if en, ok := monthNames[key]; ok {
			return en
		}
		if connectors[key] {
			return " "
		}
		return w
	})
	out = strings.ReplaceAll(out, ",", " ")
	out = dayDotRe.ReplaceAllString(out, "$1 ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}
