// Package language gates candidate entries on the language of their body text.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"
)

// Candidate languages the detector distinguishes between. A closed set keeps
// detection reliable on short abstracts.
var detectorLanguages = []lingua.Language{
	lingua.Russian,
	lingua.Ukrainian,
	lingua.English,
	lingua.German,
	lingua.French,
	lingua.Spanish,
	lingua.Italian,
}

// Filter accepts only candidates whose dominant body language matches the
// target ISO 639-1 code.
type Filter struct {
	detector lingua.LanguageDetector
	target   string
}

// New builds a filter for the given target language code, e.g. "ru".
func New(targetLang string) *Filter {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectorLanguages...).
		Build()

	return &Filter{
		detector: detector,
		target:   strings.ToLower(targetLang),
	}
}

// Allows reports whether the body text is in the target language. Rejections
// and undetectable text are logged with the entry's path and dropped; the
// filter never fails.
func (f *Filter) Allows(sourcePath, body string) bool {
	detected, ok := f.detector.DetectLanguageOf(body)
	if !ok {
		log.Warn().Str("source_path", sourcePath).Msg("Could not detect entry language, skipping")
		return false
	}

	code := strings.ToLower(detected.IsoCode639_1().String())
	if code != f.target {
		log.Warn().
			Str("source_path", sourcePath).
			Str("language", code).
			Msg("Entry not in target language, skipping")
		return false
	}
	return true
}
