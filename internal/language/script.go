package language

import (
	"strings"
	"unicode"

	textlang "golang.org/x/text/language"
)

type script int

const (
	scriptLatin script = iota
	scriptCyrillic
	scriptGreek
	scriptArabic
	scriptHebrew
	scriptHan
	scriptKana
	scriptHangul
	scriptThai
	scriptDevanagari
	scriptOther
)

var scriptOrder = []script{
	scriptLatin, scriptCyrillic, scriptGreek, scriptArabic, scriptHebrew,
	scriptHan, scriptKana, scriptHangul, scriptThai, scriptDevanagari,
}

var scriptTables = []struct {
	s     script
	table *unicode.RangeTable
}{
	{scriptLatin, unicode.Latin},
	{scriptCyrillic, unicode.Cyrillic},
	{scriptGreek, unicode.Greek},
	{scriptArabic, unicode.Arabic},
	{scriptHebrew, unicode.Hebrew},
	{scriptHan, unicode.Han},
	{scriptKana, unicode.Hiragana},
	{scriptKana, unicode.Katakana},
	{scriptHangul, unicode.Hangul},
	{scriptThai, unicode.Thai},
	{scriptDevanagari, unicode.Devanagari},
}

func classify(r rune) script {
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			return st.s
		}
	}
	return scriptOther
}

func countScripts(text string) (map[script]int, int) {
	counts := make(map[script]int)
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		counts[classify(r)]++
	}
	return counts, letters
}

// scriptLanguage picks the most likely language for a non-Latin script.
func scriptLanguage(s script, text string, counts map[script]int) textlang.Tag {
	switch s {
	case scriptCyrillic:
		if strings.ContainsAny(text, "іїєґІЇЄҐ") {
			return textlang.Ukrainian
		}
		return textlang.Russian
	case scriptGreek:
		return textlang.Greek
	case scriptArabic:
		return textlang.Arabic
	case scriptHebrew:
		return textlang.Hebrew
	case scriptHan:
		if counts[scriptKana] > 0 {
			return textlang.Japanese
		}
		return textlang.Chinese
	case scriptKana:
		return textlang.Japanese
	case scriptHangul:
		return textlang.Korean
	case scriptThai:
		return textlang.Thai
	case scriptDevanagari:
		return textlang.Hindi
	}
	return textlang.Und
}
