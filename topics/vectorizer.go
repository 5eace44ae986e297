package topics

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// englishStopwords entspricht der üblichen englischen Stoppwortliste für
// Count-Vektorisierung (gekürzt auf die im Korpus relevanten Formen).
var englishStopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are aren as at be
		because been before being below between both but by can cannot could did do does doing down during
		each few for from further had has have having he her here hers herself him himself his how i if in
		into is it its itself just me more most my myself no nor not now of off on once only or other our
		ours ourselves out over own same she should so some such than that the their theirs them themselves
		then there these they this those through to too under until up very was we were what when where
		which while who whom why will with would you your yours yourself yourselves using based results
		study paper approach proposed method methods`) {
		englishStopwords[w] = true
	}
}

// tokenize zerlegt einen Text in kleingeschriebene Terme; Terme unter drei
// Zeichen und Stoppwörter werden verworfen.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || englishStopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// termStats hält die inkrementell fortgeschriebene Vokabular-Statistik:
// Dokumentfrequenzen je Term und Termfrequenzen je Topic. Die Zählwerte sind
// reellwertig, weil sie bei jedem Update mit (1-decay) abklingen; neue
// Dokumente wiegen dadurch schwerer als alte.
type termStats struct {
	DocFreq   map[string]float64         `json:"doc_freq"`
	TermFreq  map[int]map[string]float64 `json:"term_freq"`
	TotalDocs float64                    `json:"total_docs"`
}

func newTermStats() *termStats {
	return &termStats{
		DocFreq:  make(map[string]float64),
		TermFreq: make(map[int]map[string]float64),
	}
}

// decayAll lässt alle Zählwerte um den Faktor (1-decay) abklingen. Wird einmal
// pro Update-Batch aufgerufen, bevor neue Dokumente gezählt werden.
func (s *termStats) decayAll(decay float64) {
	if decay <= 0 {
		return
	}
	factor := 1 - decay
	for term := range s.DocFreq {
		s.DocFreq[term] *= factor
	}
	for _, freqs := range s.TermFreq {
		for term := range freqs {
			freqs[term] *= factor
		}
	}
	s.TotalDocs *= factor
}

// addDocument zählt die Tokens eines Dokuments für sein Topic (auch für den
// Outlier -1) und aktualisiert die Dokumentfrequenzen.
func (s *termStats) addDocument(tokens []string, topicID int) {
	s.TotalDocs++

	freqs := s.TermFreq[topicID]
	if freqs == nil {
		freqs = make(map[string]float64)
		s.TermFreq[topicID] = freqs
	}

	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
		if !seen[tok] {
			seen[tok] = true
			s.DocFreq[tok]++
		}
	}
}

// TermWeight ist ein gewichteter Begriff eines Topics.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// topTerms berechnet die klassenbasierten TF-IDF-Gewichte eines Topics über
// dem auf minDF/maxDF beschnittenen Vokabular, absteigend sortiert,
// auf limit Einträge gekürzt (limit <= 0: alle).
func (s *termStats) topTerms(topicID int, minDF int, maxDF float64, limit int) []TermWeight {
	freqs := s.TermFreq[topicID]
	if len(freqs) == 0 {
		return nil
	}

	var totalTF float64
	for _, f := range freqs {
		totalTF += f
	}
	if totalTF == 0 {
		return nil
	}

	weights := make([]TermWeight, 0, len(freqs))
	for term, tf := range freqs {
		df := s.DocFreq[term]
		if df < float64(minDF) {
			continue
		}
		if s.TotalDocs > 0 && df/s.TotalDocs > maxDF {
			continue
		}
		idf := math.Log(1 + s.TotalDocs/df)
		weights = append(weights, TermWeight{Term: term, Weight: (tf / totalTF) * idf})
	}

	sort.Slice(weights, func(a, b int) bool {
		if weights[a].Weight != weights[b].Weight {
			return weights[a].Weight > weights[b].Weight
		}
		return weights[a].Term < weights[b].Term
	})

	if limit > 0 && len(weights) > limit {
		weights = weights[:limit]
	}
	return weights
}
