package tags

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxKeywords is the number of fallback tags derived per quote.
const MaxKeywords = 8

const (
	minKeywordRunes = 4
	maxKeywordRunes = 20
)

var (
	apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

	contractions = strings.NewReplacer(
		"won't", "will not",
		"can't", "cannot",
		"shan't", "shall not",
		"n't", " not",
		"'re", " are",
		"'ve", " have",
		"'ll", " will",
		"'d", " would",
		"'m", " am",
		"'s", "",
	)

	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	numeric     = regexp.MustCompile(`^\p{N}+$`)
)

var stopWords = toSet(`
a about above after again against all almost also although always am among an and another any
anyone anything are around as at away back be became because become becomes been before being
below between both but by came can cannot come could did does doing done down during each
either else enough even ever every everyone everything few first for from further get gets
getting give given goes going gone got had has have having he her here hers herself him himself
his how however i if in into is it its itself just keep know known last least less like made
make makes making many may maybe me might mine more most mostly much must my myself near need
never next no nobody none nor not nothing now of off often on once one only onto or other
others otherwise our ours ourselves out over own perhaps put quite rather really said same
say says see seem seemed seems several shall she should since so some someone something
sometimes still such take than that the their theirs them themselves then there therefore
these they thing things this those though through thus to together too took toward towards
under until up upon us used very want was way we well went were what whatever when where
whether which while who whole whom whose why will with within without would yet you your
yours yourself yourselves
`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// Keywords derives up to limit tags from text: the most frequent distinct
// words that are not stop words, not purely numeric and between 4 and 20
// runes long. Ties keep first-occurrence order. limit <= 0 means MaxKeywords.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxKeywords
	}
	s := strings.ToLower(apostrophes.Replace(text))
	s = contractions.Replace(s)
	s = punctuation.ReplaceAllString(s, " ")

	type entry struct {
		word  string
		count int
	}
	var order []*entry
	index := make(map[string]*entry)
	for _, w := range strings.Fields(s) {
		if !candidate(w) {
			continue
		}
		if e, ok := index[w]; ok {
			e.count++
			continue
		}
		e := &entry{word: w, count: 1}
		index[w] = e
		order = append(order, e)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	out := make([]string, 0, limit)
	for _, e := range order {
		if len(out) == limit {
			break
		}
		out = append(out, e.word)
	}
	return out
}

func candidate(w string) bool {
	n := utf8.RuneCountInString(w)
	if n < minKeywordRunes || n > maxKeywordRunes {
		return false
	}
	if numeric.MatchString(w) {
		return false
	}
	_, stop := stopWords[w]
	return !stop
}
