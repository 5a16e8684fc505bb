package textutil

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title upper-cases the first letter of each word, e.g. "lead vocals" to
// "Lead Vocals". Casers are stateful, so one is built per call.
func Title(value string) string {
	return cases.Title(language.English).String(value)
}
