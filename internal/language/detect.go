// Package language provides offline language detection for short survey
// answers.
//
// Non-Latin scripts are identified by their Unicode script alone. Latin text
// is scored against stop-word lists and characteristic diacritics for a
// fixed set of European languages. Short brand-like inputs usually carry no
// signal at all, in which case the detector reports its configured default
// with low confidence.
package language

import (
	"errors"
	"fmt"
	"strings"

	textlang "golang.org/x/text/language"
)

// ErrUndetermined is returned when the input contains no letters.
var ErrUndetermined = errors.New("language could not be determined")

// LowConfidence is reported when Latin text carries no language signal and
// the default language is assumed.
const LowConfidence = 0.1

// Detection is the outcome of a detection pass.
type Detection struct {
	Tag        textlang.Tag
	Confidence float64
	// Assumed is true when the tag is the detector's default rather than
	// something the text indicated.
	Assumed bool
}

// Code returns the ISO 639-1 base code, e.g. "en".
func (d Detection) Code() string {
	base, _ := d.Tag.Base()
	return base.String()
}

// Detector detects the language of short texts. It is stateless after
// construction and safe for concurrent use.
type Detector struct {
	fallback textlang.Tag
}

// NewDetector returns a detector that reports fallback when Latin text has
// no recognizable signal. An undefined fallback means English.
func NewDetector(fallback textlang.Tag) *Detector {
	if fallback == textlang.Und {
		fallback = textlang.English
	}
	return &Detector{fallback: fallback}
}

// Fallback returns the default language.
func (d *Detector) Fallback() textlang.Tag { return d.fallback }

// Parse parses a BCP 47 tag such as "en" or "pt-BR".
func Parse(code string) (textlang.Tag, error) {
	tag, err := textlang.Parse(strings.TrimSpace(code))
	if err != nil {
		return textlang.Und, fmt.Errorf("invalid language tag %q: %w", code, err)
	}
	return tag, nil
}

// SameLanguage reports whether a and b share a base language, so "en-GB"
// and "en" compare equal.
func SameLanguage(a, b textlang.Tag) bool {
	ba, ca := a.Base()
	bb, cb := b.Base()
	if ca == textlang.No || cb == textlang.No {
		return false
	}
	return ba == bb
}

// Detect identifies the language of text.
func (d *Detector) Detect(text string) (Detection, error) {
	counts, letters := countScripts(text)
	if letters == 0 {
		return Detection{}, ErrUndetermined
	}

	dominant, n := scriptLatin, 0
	for _, s := range scriptOrder {
		if counts[s] > n {
			dominant, n = s, counts[s]
		}
	}

	if dominant != scriptLatin {
		return Detection{
			Tag:        scriptLanguage(dominant, text, counts),
			Confidence: float64(n) / float64(letters),
		}, nil
	}

	tag, conf, ok := scoreLatin(text)
	if !ok {
		return Detection{Tag: d.fallback, Confidence: LowConfidence, Assumed: true}, nil
	}
	return Detection{Tag: tag, Confidence: conf}, nil
}
