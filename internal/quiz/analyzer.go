package quiz

import (
	"sort"
	"strings"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// Vocabularies of terms worth counting in the retrieved messages. These
// are matched against normalized (lowercased, accent-folded) content.
var (
	nicknameVocab = []string{
		"amor", "bebe", "bb", "mi vida", "corazon", "cielo", "chapo",
		"chapozita", "princesa", "rey", "reina", "tesoro", "cariño",
		"mi todo", "mi mundo",
	}
	phraseVocab = []string{
		"te amo", "te quiero", "te extraño", "te necesito", "mi amor",
		"siempre juntos", "para siempre", "eres todo", "eres mi vida",
	}
	placeVocab = []string{
		"parque", "playa", "cine", "restaurante", "nuestra casa",
		"nuestro lugar", "mirador", "cafe",
	}
)

// stopwords excluded from the generic frequent-term extraction.
var stopwords = map[string]struct{}{
	"que": {}, "de": {}, "la": {}, "el": {}, "en": {}, "y": {}, "a": {},
	"los": {}, "las": {}, "un": {}, "una": {}, "es": {}, "no": {},
	"si": {}, "se": {}, "me": {}, "te": {}, "mi": {}, "tu": {}, "yo": {},
	"lo": {}, "le": {}, "con": {}, "por": {}, "para": {}, "pero": {},
	"como": {}, "mas": {}, "ya": {}, "o": {}, "del": {}, "al": {},
	"esta": {}, "eso": {}, "ese": {}, "esa": {}, "muy": {}, "hay": {},
	"the": {}, "and": {}, "you": {}, "jaja": {}, "jajaja": {},
}

const (
	maxExcerpts     = 20
	excerptMaxChars = 150
	minTermCount    = 3
	topVocabTerms   = 5
	topPlaces       = 3
	topGenericTerms = 8
)

// TermCount is a term with its observed frequency.
type TermCount struct {
	Term  string
	Count int
}

// Excerpt is a literal message sample fed to the prompt as evidence.
type Excerpt struct {
	Sender  string
	Content string
	Date    string
}

// Extract is the statistical summary of a set of retrieved messages.
type Extract struct {
	TopNicknames []TermCount
	TopPhrases   []TermCount
	TopPlaces    []TermCount
	TopTerms     []TermCount
	Examples     []Excerpt
	LastDate     string
}

// Empty reports whether the extraction found nothing usable.
func (e Extract) Empty() bool {
	return len(e.Examples) == 0
}

// Analyze counts nickname, phrase and place vocabulary hits plus generic
// frequent words and bigrams across the messages, and samples literal
// excerpts with their dates.
func Analyze(messages []domain.Message) Extract {
	nicknameCounts := map[string]int{}
	phraseCounts := map[string]int{}
	placeCounts := map[string]int{}
	termCounts := map[string]int{}

	var extract Extract
	var lastTS int64

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		content := normalizeAnswer(msg.Content)

		countVocab(content, nicknameVocab, nicknameCounts)
		countVocab(content, phraseVocab, phraseCounts)
		countVocab(content, placeVocab, placeCounts)
		countTerms(content, termCounts)

		if msg.TimestampMS > lastTS {
			lastTS = msg.TimestampMS
		}

		if len(extract.Examples) < maxExcerpts {
			extract.Examples = append(extract.Examples, Excerpt{
				Sender:  msg.Sender,
				Content: clip(msg.Content, excerptMaxChars),
				Date:    msg.Date(),
			})
		}
	}

	if lastTS > 0 {
		extract.LastDate = (domain.Message{TimestampMS: lastTS}).Date()
	}
	extract.TopNicknames = topN(nicknameCounts, topVocabTerms, 1)
	extract.TopPhrases = topN(phraseCounts, topVocabTerms, 1)
	extract.TopPlaces = topN(placeCounts, topPlaces, 1)
	extract.TopTerms = topN(termCounts, topGenericTerms, minTermCount)
	return extract
}

func countVocab(content string, vocab []string, counts map[string]int) {
	for _, term := range vocab {
		if strings.Contains(content, normalizeAnswer(term)) {
			counts[term]++
		}
	}
}

// countTerms counts individual words and adjacent bigrams, skipping
// stopwords and very short tokens.
func countTerms(content string, counts map[string]int) {
	words := strings.FieldsFunc(content, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == 'ñ')
	})

	var kept []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		kept = append(kept, w)
		counts[w]++
	}
	for i := 0; i+1 < len(kept); i++ {
		counts[kept[i]+" "+kept[i+1]]++
	}
}

func topN(counts map[string]int, n, minCount int) []TermCount {
	terms := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		if count >= minCount {
			terms = append(terms, TermCount{Term: term, Count: count})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
