// Package textfeat scores transcript text for fraud and harassment risk
// using fixed pattern libraries shipped as an embedded YAML lexicon. All
// scores are deterministic and bounded to [0,1].
package textfeat

import (
	"strings"
	"unicode"
)

// Composite weights for the text fraud score.
const (
	weightAuthority  = 0.12
	weightUrgency    = 0.12
	weightThreat     = 0.15
	weightPII        = 0.2
	weightImperative = 0.05
	weightBigram     = 0.08
	weightTrigram    = 0.08
	weightHarassment = 0.2
)

// CategoryScore is one pattern library's capped score plus the text that
// triggered it.
type CategoryScore struct {
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
}

// Features is the linguistic snapshot for one transcript.
type Features struct {
	Authority  CategoryScore `json:"authority"`
	Urgency    CategoryScore `json:"urgency"`
	Threat     CategoryScore `json:"threat"`
	PII        CategoryScore `json:"pii"`
	Harassment CategoryScore `json:"harassment"`

	// PIISubtypes names the matched PII subtypes (ssn, financial, ...).
	PIISubtypes []string `json:"piiSubtypes,omitempty"`

	Imperative        float64 `json:"imperativeFrequency"`
	Sentiment         float64 `json:"sentiment"` // [-1,1]
	Subjectivity      float64 `json:"subjectivity"`
	QuestionFrequency float64 `json:"questionFrequency"`
	NegationFrequency float64 `json:"negationFrequency"`
	BigramScore       float64 `json:"bigramScore"`
	TrigramScore      float64 `json:"trigramScore"`

	FraudScore float64 `json:"textFraudScore"`
}

// Extractor matches transcripts against the compiled lexicon. Stateless;
// safe to share across chunks of one session.
type Extractor struct {
	lex *lexicon
}

// NewExtractor compiles the embedded lexicon.
func NewExtractor() (*Extractor, error) {
	lex, err := loadLexicon()
	if err != nil {
		return nil, err
	}
	return &Extractor{lex: lex}, nil
}

// Extract scores one transcript. Empty text yields zeroed features.
func (e *Extractor) Extract(text string) Features {
	f := Features{}
	if strings.TrimSpace(text) == "" {
		return f
	}
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	f.Authority = scoreCategory(e.lex.authority, lower)
	f.Urgency = scoreCategory(e.lex.urgency, lower)
	f.Threat = scoreCategory(e.lex.threat, lower)
	f.Harassment = scoreCategory(e.lex.harassment, lower)
	f.PII, f.PIISubtypes = e.scorePII(lower)

	f.Imperative = tokenFraction(tokens, e.lex.imperative)
	f.Sentiment = sentimentRatio(tokens, e.lex.positive, e.lex.negative)
	f.Subjectivity = tokenFraction(tokens, e.lex.subjective)
	f.NegationFrequency = tokenFraction(tokens, e.lex.negation)
	f.QuestionFrequency = questionFrequency(text)

	f.BigramScore = ngramScore(tokens, 2, e.lex.bigrams)
	f.TrigramScore = ngramScore(tokens, 3, e.lex.trigrams)

	f.FraudScore = e.composite(&f)
	return f
}

// composite applies the fixed weights, then the co-occurrence boosts, then
// the harassment floor, clamping at each step.
func (e *Extractor) composite(f *Features) float64 {
	score := weightAuthority*f.Authority.Score +
		weightUrgency*f.Urgency.Score +
		weightThreat*f.Threat.Score +
		weightPII*f.PII.Score +
		weightImperative*f.Imperative +
		weightBigram*f.BigramScore +
		weightTrigram*f.TrigramScore +
		weightHarassment*f.Harassment.Score

	flags := 0
	if f.Authority.Score > 0.5 {
		flags++
	}
	if f.Urgency.Score > 0.5 {
		flags++
	}
	if f.PII.Score > 0.5 {
		flags++
	}
	if f.BigramScore > 0.7 {
		flags++
	}
	if f.Harassment.Score > 0.3 {
		flags++
	}

	if flags >= 2 {
		score = clamp01(score * 1.3)
	}
	if flags >= 3 {
		score = clamp01(score * 1.2)
	}
	if f.Harassment.Score > 0.5 && score < 0.7 {
		score = 0.7
	}
	return clamp01(score)
}

func scoreCategory(c category, lower string) CategoryScore {
	out := CategoryScore{}
	for _, re := range c.patterns {
		if m := re.FindString(lower); m != "" {
			out.Score += c.increment
			out.Evidence = append(out.Evidence, m)
		}
	}
	if out.Score > 1 {
		out.Score = 1
	}
	return out
}

func (e *Extractor) scorePII(lower string) (CategoryScore, []string) {
	out := CategoryScore{}
	var subtypes []string
	for _, name := range []string{"ssn", "financial", "identity", "access"} {
		for _, re := range e.lex.piiSubtypes[name] {
			if m := re.FindString(lower); m != "" {
				out.Score += e.lex.piiIncrement
				out.Evidence = append(out.Evidence, m)
				subtypes = append(subtypes, name)
				break
			}
		}
	}
	if out.Score > 1 {
		out.Score = 1
	}
	return out, subtypes
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func tokenFraction(tokens []string, set map[string]bool) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// sentimentRatio is (positive-negative)/(positive+negative), 0 when the
// text carries no sentiment words.
func sentimentRatio(tokens []string, pos, neg map[string]bool) float64 {
	var p, n int
	for _, t := range tokens {
		if pos[t] {
			p++
		}
		if neg[t] {
			n++
		}
	}
	if p+n == 0 {
		return 0
	}
	return float64(p-n) / float64(p+n)
}

func questionFrequency(text string) float64 {
	sentences := 0
	questions := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	questions = strings.Count(text, "?")
	if sentences == 0 {
		return 0
	}
	f := float64(questions) / float64(sentences)
	return clamp01(f)
}

// ngramScore returns the highest table score among all n-token windows.
func ngramScore(tokens []string, n int, table map[string]float64) float64 {
	if len(tokens) < n || len(table) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+n <= len(tokens); i++ {
		key := strings.Join(tokens[i:i+n], " ")
		if s, ok := table[key]; ok && s > best {
			best = s
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
