// Package convo maintains conversation-level context across chunks: the
// active topic, topical continuity, and a coarse emotional trajectory.
package convo

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/callsift/callsift/acoustic"
)

// Emotional states derived from the valence/arousal/dominance estimate.
const (
	EmotionNeutral   = "neutral"
	EmotionStressed  = "stressed"
	EmotionAngry     = "angry"
	EmotionAnxious   = "anxious"
	EmotionFearful   = "fearful"
	EmotionConfident = "confident"
)

// Emotional trend labels.
const (
	TrendStable       = "stable"
	TrendEscalating   = "escalating"
	TrendDeescalating = "de-escalating"
)

const (
	// TopicGeneral is the topic before anything risky has been said.
	TopicGeneral = "general"

	emotionHistoryCap = 50
	trendWindow       = 10
	trendDelta        = 0.15

	// continuity blends the running value with the per-chunk coherence
	continuityOld = 0.7
	continuityNew = 0.3
)

// topicRule couples a topic label with its detection patterns. Rules are
// evaluated in order and the first with any match wins.
type topicRule struct {
	name     string
	patterns []*regexp.Regexp
}

func compileTopics() []topicRule {
	mk := func(name string, pats ...string) topicRule {
		r := topicRule{name: name}
		for _, p := range pats {
			r.patterns = append(r.patterns, regexp.MustCompile("(?i)"+p))
		}
		return r
	}
	return []topicRule{
		mk("financial",
			`\b(money|payment|pay|bank|account|card|gift card|wire|transfer|bitcoin|fee|fine|owe|refund)\b`,
			`\b(dollars?|euros?|cash)\b`),
		mk("identity",
			`\b(social security|ssn|date of birth|maiden name|passport|driver'?s license|verify your identity)\b`),
		mk("urgency",
			`\b(immediately|urgent|right away|asap|deadline|expires?|last chance|final (warning|notice))\b`),
		mk("authority",
			`\b(irs|fbi|police|government|officer|agent|warrant|arrest|lawsuit|legal action)\b`),
		mk("technical",
			`\b(computer|virus|remote access|install|download|anydesk|teamviewer|tech support|error code)\b`),
		mk("prize_scam",
			`\b(won|winner|prize|lottery|sweepstakes|claim your|congratulations)\b`),
		mk("romance",
			`\b(love you|miss you|soul ?mate|relationship|lonely|meet in person)\b`),
		mk("investment",
			`\b(invest(ment)?|returns?|crypto(currency)?|stocks?|trading|guaranteed profit|portfolio)\b`),
	}
}

// State is the tracker's current view of the conversation.
type State struct {
	Topic           string  `json:"topic"`
	TopicConfidence float64 `json:"topicConfidence"`
	Continuity      float64 `json:"continuity"`
	Emotion         string  `json:"emotion"`
	Trend           string  `json:"emotionalTrend"`
	Turns           int     `json:"turns"`
	Duration        float64 `json:"duration"` // cumulative call seconds
}

// TopicShift is emitted when the detected topic replaces a different one.
type TopicShift struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

// Tracker accumulates context for one call. Not safe for concurrent use;
// the pipeline serializes chunk processing.
type Tracker struct {
	topics []topicRule

	topic           string
	topicConfidence float64
	continuity      float64
	arousalHistory  []float64
	emotions        []string
	shifts          []TopicShift
	turns           int
	lastSpeaker     string
	duration        float64

	log *logrus.Entry
}

// NewTracker creates a tracker with the built-in topic rules.
func NewTracker() *Tracker {
	t := &Tracker{
		topics: compileTopics(),
		log:    logrus.WithField("component", "convo"),
	}
	t.Reset()
	return t
}

// Reset restores the pre-call state.
func (t *Tracker) Reset() {
	t.topic = TopicGeneral
	t.topicConfidence = 0
	t.continuity = 1.0
	t.arousalHistory = t.arousalHistory[:0]
	t.emotions = t.emotions[:0]
	t.shifts = t.shifts[:0]
	t.turns = 0
	t.lastSpeaker = ""
	t.duration = 0
}

// Update folds one chunk's transcript, duration, resolved speaker and
// acoustic features into the context. The returned shift is non-nil only
// when the topic changed.
func (t *Tracker) Update(text string, duration float64, speakerID string, af acoustic.Features) (State, *TopicShift) {
	var shift *TopicShift

	if strings.TrimSpace(text) != "" {
		topic, conf := t.detectTopic(text)
		if topic != "" && topic != t.topic {
			s := TopicShift{From: t.topic, To: topic, Confidence: conf}
			t.shifts = append(t.shifts, s)
			shift = &s
			t.log.WithFields(logrus.Fields{"from": s.From, "to": s.To, "confidence": conf}).Debug("topic shift")
		}
		if topic != "" {
			t.topic = topic
			t.topicConfidence = conf
		}
	}
	// empty chunks blend the 0.5 default, so continuity decays rather
	// than freezing at its last value
	t.continuity = continuityOld*t.continuity + continuityNew*coherence(text)

	if duration > 0 {
		t.duration += duration
	}
	if speakerID != "" && speakerID != t.lastSpeaker {
		t.turns++
		t.lastSpeaker = speakerID
	}

	emotion, arousal := classifyEmotion(af)
	t.arousalHistory = append(t.arousalHistory, arousal)
	t.emotions = append(t.emotions, emotion)
	if len(t.arousalHistory) > emotionHistoryCap {
		t.arousalHistory = t.arousalHistory[len(t.arousalHistory)-emotionHistoryCap:]
		t.emotions = t.emotions[len(t.emotions)-emotionHistoryCap:]
	}

	return t.State(), shift
}

// State returns the current snapshot without mutating anything.
func (t *Tracker) State() State {
	return State{
		Topic:           t.topic,
		TopicConfidence: t.topicConfidence,
		Continuity:      t.continuity,
		Emotion:         t.currentEmotion(),
		Trend:           t.Trend(),
		Turns:           t.turns,
		Duration:        t.duration,
	}
}

// detectTopic returns the first rule with any match, with confidence
// matches/3 capped at 1. Empty topic means nothing matched.
func (t *Tracker) detectTopic(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, rule := range t.topics {
		matches := 0
		for _, re := range rule.patterns {
			matches += len(re.FindAllString(lower, -1))
		}
		if matches > 0 {
			conf := float64(matches) / 3
			if conf > 1 {
				conf = 1
			}
			return rule.name, conf
		}
	}
	return "", 0
}

// coherence scores sentence shape: sentences of 3 to 20 tokens read as
// coherent speech, anything else (fragments, run-ons) scores half.
func coherence(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	scored := 0
	sum := 0.0
	for _, s := range sentences {
		n := len(strings.Fields(s))
		if n == 0 {
			continue
		}
		scored++
		if n >= 3 && n <= 20 {
			sum += 1.0
		} else {
			sum += 0.5
		}
	}
	if scored == 0 {
		return 0.5
	}
	return sum / float64(scored)
}

// classifyEmotion maps acoustic features onto a valence/arousal/dominance
// triple and then a discrete label. High measured stress dominates.
func classifyEmotion(af acoustic.Features) (string, float64) {
	valence := 1 - af.StressScore
	arousal := (af.PitchVariance + af.EnergyMean + af.SpeechRate) / 3
	dominance := (af.EnergyMean + (1 - af.StressScore)) / 2

	switch {
	case af.StressScore > 0.7:
		return EmotionStressed, arousal
	case arousal > 0.7 && valence < 0.35:
		return EmotionAngry, arousal
	case arousal > 0.6 && valence < 0.5:
		return EmotionAnxious, arousal
	case valence < 0.3 && dominance < 0.4:
		return EmotionFearful, arousal
	case dominance > 0.65 && valence >= 0.5:
		return EmotionConfident, arousal
	}
	return EmotionNeutral, arousal
}

func (t *Tracker) currentEmotion() string {
	if len(t.emotions) == 0 {
		return EmotionNeutral
	}
	return t.emotions[len(t.emotions)-1]
}

// Trend compares mean arousal of the earliest and latest five entries in
// the last ten chunks. Short histories are stable by definition.
func (t *Tracker) Trend() string {
	if len(t.arousalHistory) < trendWindow {
		return TrendStable
	}
	recent := t.arousalHistory[len(t.arousalHistory)-trendWindow:]
	early := mean(recent[:5])
	late := mean(recent[5:])
	switch {
	case late-early > trendDelta:
		return TrendEscalating
	case early-late > trendDelta:
		return TrendDeescalating
	}
	return TrendStable
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Per-topic base risk used by the fusion adjustment.
var topicRisk = map[string]float64{
	"financial":  0.8,
	"identity":   0.8,
	"urgency":    0.6,
	"authority":  0.7,
	"technical":  0.5,
	"prize_scam": 0.9,
	"romance":    0.7,
	"investment": 0.8,
}

// RiskAdjustment converts the context into a [0,1] risk signal: the
// topic's base risk scaled by the emotional trend, plus a penalty for
// fragmented conversation flow.
func (t *Tracker) RiskAdjustment() float64 {
	base := topicRisk[t.topic] // 0 for general
	switch t.Trend() {
	case TrendEscalating:
		base *= 1.15
	case TrendDeescalating:
		base *= 0.85
	}
	if t.continuity < 0.4 {
		base += 0.1
	}
	if base > 1 {
		return 1
	}
	if base < 0 {
		return 0
	}
	return base
}

// Shifts returns all topic shifts seen so far this call.
func (t *Tracker) Shifts() []TopicShift {
	out := make([]TopicShift, len(t.shifts))
	copy(out, t.shifts)
	return out
}
