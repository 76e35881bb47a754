package language

import (
	"strings"
	"unicode"

	textlang "golang.org/x/text/language"
)

type latinProfile struct {
	tag       textlang.Tag
	stopwords map[string]struct{}
	marks     string
}

func words(list string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		m[w] = struct{}{}
	}
	return m
}

// Profiles are listed in tie-break order.
var latinProfiles = []latinProfile{
	{
		tag:       textlang.English,
		stopwords: words("the and is are was of to in it that for with you my this have not but they on at be i we do don't use like"),
	},
	{
		tag:       textlang.Spanish,
		stopwords: words("el la los las y es de que en un una por para con no mi lo se muy pero uso como"),
		marks:     "ñ¿¡",
	},
	{
		tag:       textlang.French,
		stopwords: words("le la les et est des du un une que qui pour pas avec je mon ma ce sur très mais dans"),
		marks:     "çèêëàâùûîïœ",
	},
	{
		tag:       textlang.German,
		stopwords: words("der die das und ist nicht ich ein eine mit für auf sehr aber zu mein den dem es"),
		marks:     "ßäöü",
	},
	{
		tag:       textlang.Italian,
		stopwords: words("il lo gli la le e è di che un una per non con mi mio molto ma sono della"),
		marks:     "ìòù",
	},
	{
		tag:       textlang.Portuguese,
		stopwords: words("o a os as e é de que um uma para com não eu meu muito mas em do da uso"),
		marks:     "ãõç",
	},
	{
		tag:       textlang.Dutch,
		stopwords: words("de het een en is van ik niet met voor op dat maar zijn mijn heel"),
	},
	{
		tag:       textlang.Polish,
		stopwords: words("i w na nie jest to że z się do jak ale mój bardzo tak"),
		marks:     "ąęłśżźćń",
	},
	{
		tag:       textlang.Turkish,
		stopwords: words("ve bir bu da de çok için ile ama ben değil gibi"),
		marks:     "ğşı",
	},
	{
		tag:       textlang.Swedish,
		stopwords: words("och är det att en ett jag inte med för på som men min mycket"),
		marks:     "å",
	},
}

// markWeight is the score of a characteristic diacritic relative to a
// stop-word hit.
const markWeight = 0.5

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// scoreLatin returns the best-scoring Latin language and a confidence equal
// to its share of the total score. ok is false when no profile scored.
func scoreLatin(text string) (textlang.Tag, float64, bool) {
	tokens := tokenize(text)
	lower := strings.ToLower(text)

	best, bestScore, total := textlang.Und, 0.0, 0.0
	for _, p := range latinProfiles {
		score := 0.0
		for _, tok := range tokens {
			if _, ok := p.stopwords[tok]; ok {
				score++
			}
		}
		for _, r := range p.marks {
			score += markWeight * float64(strings.Count(lower, string(r)))
		}
		total += score
		if score > bestScore {
			best, bestScore = p.tag, score
		}
	}
	if bestScore == 0 {
		return textlang.Und, 0, false
	}
	return best, bestScore / total, true
}
