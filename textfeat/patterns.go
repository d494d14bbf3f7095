package textfeat

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

type rawCategory struct {
	Increment float64  `yaml:"increment"`
	Patterns  []string `yaml:"patterns"`
}

type rawPII struct {
	Increment float64             `yaml:"increment"`
	Subtypes  map[string][]string `yaml:"subtypes"`
}

type rawLexicon struct {
	Authority       rawCategory        `yaml:"authority"`
	Urgency         rawCategory        `yaml:"urgency"`
	Threat          rawCategory        `yaml:"threat"`
	Harassment      rawCategory        `yaml:"harassment"`
	PII             rawPII             `yaml:"pii"`
	ImperativeVerbs []string           `yaml:"imperative_verbs"`
	PositiveWords   []string           `yaml:"positive_words"`
	NegativeWords   []string           `yaml:"negative_words"`
	SubjectiveWords []string           `yaml:"subjective_words"`
	NegationWords   []string           `yaml:"negation_words"`
	Bigrams         map[string]float64 `yaml:"bigrams"`
	Trigrams        map[string]float64 `yaml:"trigrams"`
}

// category is a compiled pattern library with its per-match increment.
type category struct {
	increment float64
	patterns  []*regexp.Regexp
}

type lexicon struct {
	authority  category
	urgency    category
	threat     category
	harassment category

	piiIncrement float64
	piiSubtypes  map[string][]*regexp.Regexp

	imperative map[string]bool
	positive   map[string]bool
	negative   map[string]bool
	subjective map[string]bool
	negation   map[string]bool

	bigrams  map[string]float64
	trigrams map[string]float64
}

func compileCategory(raw rawCategory) (category, error) {
	c := category{increment: raw.Increment}
	for _, p := range raw.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return category{}, fmt.Errorf("pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func loadLexicon() (*lexicon, error) {
	var raw rawLexicon
	if err := yaml.Unmarshal(patternsYAML, &raw); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}

	lex := &lexicon{
		piiIncrement: raw.PII.Increment,
		piiSubtypes:  make(map[string][]*regexp.Regexp, len(raw.PII.Subtypes)),
		imperative:   wordSet(raw.ImperativeVerbs),
		positive:     wordSet(raw.PositiveWords),
		negative:     wordSet(raw.NegativeWords),
		subjective:   wordSet(raw.SubjectiveWords),
		negation:     wordSet(raw.NegationWords),
		bigrams:      raw.Bigrams,
		trigrams:     raw.Trigrams,
	}

	var err error
	if lex.authority, err = compileCategory(raw.Authority); err != nil {
		return nil, err
	}
	if lex.urgency, err = compileCategory(raw.Urgency); err != nil {
		return nil, err
	}
	if lex.threat, err = compileCategory(raw.Threat); err != nil {
		return nil, err
	}
	if lex.harassment, err = compileCategory(raw.Harassment); err != nil {
		return nil, err
	}
	for name, patterns := range raw.PII.Subtypes {
		for _, p := range patterns {
			re, cerr := regexp.Compile("(?i)" + p)
			if cerr != nil {
				return nil, fmt.Errorf("pii %s pattern %q: %w", name, p, cerr)
			}
			lex.piiSubtypes[name] = append(lex.piiSubtypes[name], re)
		}
	}
	return lex, nil
}
