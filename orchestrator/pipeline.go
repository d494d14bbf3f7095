// Package orchestrator sequences the per-chunk analyses and fuses their
// scores into a single risk probability per chunk. One Pipeline owns one
// call session; concurrent sessions need separate pipelines.
package orchestrator

import (
	"errors"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/callsift/callsift/acoustic"
	cfg "github.com/callsift/callsift/config"
	"github.com/callsift/callsift/convo"
	"github.com/callsift/callsift/metadata"
	"github.com/callsift/callsift/speaker"
	"github.com/callsift/callsift/textfeat"
)

// Lifecycle errors.
var (
	ErrNotActive     = errors.New("pipeline not active")
	ErrAlreadyActive = errors.New("pipeline already active")
)

// Fusion weights. Each signal contributes score*weight when present and
// its weight to the divisor, so absent signals never dilute the result.
const (
	weightText    = 0.35
	weightAudio   = 0.25
	weightSpeaker = 0.2
	weightContext = 0.2

	textConfidence = 0.9
	latencyWindow  = 100
)

// Pipeline is the per-session fusion orchestrator.
type Pipeline struct {
	cfg *cfg.Root

	acoustic *acoustic.Extractor
	text     *textfeat.Extractor
	speakers *speaker.Tracker
	context  *convo.Tracker
	feed     *metadata.Feed

	active   bool
	clock    float64 // call seconds consumed so far
	metaSeen bool

	listeners []Listener

	chunkCount int
	latencies  []float64
	peak       float64
	topics     map[string]struct{}
	alertCount int

	log *logrus.Entry
}

// NewPipeline builds a pipeline from config. The text lexicon is compiled
// eagerly so a broken pattern set fails construction, not the first chunk.
func NewPipeline(c *cfg.Root) (*Pipeline, error) {
	text, err := textfeat.NewExtractor()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      c,
		acoustic: acoustic.NewExtractor(c.Audio.SampleRate, c.Audio.WindowSize),
		text:     text,
		speakers: speaker.NewTracker(c.Audio.SampleRate),
		context:  convo.NewTracker(),
		feed:     metadata.NewFeed(),
		topics:   map[string]struct{}{},
		log:      logrus.WithField("component", "orchestrator"),
	}, nil
}

// AddListener registers a result/alert consumer.
func (p *Pipeline) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Start moves the pipeline from idle to active.
func (p *Pipeline) Start() error {
	if p.active {
		return ErrAlreadyActive
	}
	p.active = true
	p.log.Info("session started")
	return nil
}

// Stop moves the pipeline back to idle. Session state survives until Reset.
func (p *Pipeline) Stop() {
	if p.active {
		p.active = false
		p.log.WithField("chunks", p.chunkCount).Info("session stopped")
	}
}

// Reset restores the pipeline to the freshly constructed state. Idempotent.
func (p *Pipeline) Reset() {
	p.active = false
	p.clock = 0
	p.metaSeen = false
	p.acoustic.Reset()
	p.speakers.Reset()
	p.context.Reset()
	p.feed.Reset()
	p.chunkCount = 0
	p.latencies = p.latencies[:0]
	p.peak = 0
	p.topics = map[string]struct{}{}
	p.alertCount = 0
}

// ProcessChunk runs every enabled analysis over one chunk and fuses the
// scores. Chunks must arrive in call order; the rolling state in the
// sub-trackers is sequence sensitive.
func (p *Pipeline) ProcessChunk(chunk AudioChunk) (AnalysisResult, error) {
	if !p.active {
		return AnalysisResult{}, ErrNotActive
	}
	began := time.Now()

	if chunk.ID == "" {
		chunk.ID = ulid.Make().String()
	}
	dur := 0.0
	if p.cfg.Audio.SampleRate > 0 {
		dur = float64(len(chunk.Samples)) / float64(p.cfg.Audio.SampleRate)
	}
	res := AnalysisResult{ChunkID: chunk.ID, Timestamp: p.clock, Duration: dur}
	p.clock += dur

	var af acoustic.Features
	if p.cfg.Analysis.Acoustic {
		af = p.acoustic.Extract(chunk.Samples)
		res.Acoustic = &af
	}
	// the energy gate comes from the raw samples, not the acoustic
	// features, so each enable flag governs only its own analysis
	voiced := acoustic.RMS(chunk.Samples) > 0
	audioOK := p.cfg.Analysis.Acoustic && voiced

	var tf *textfeat.Features
	if p.cfg.Analysis.Text && chunk.Transcript != "" {
		v := p.text.Extract(chunk.Transcript)
		tf = &v
		res.Text = tf
	}

	if p.cfg.Analysis.Speaker && voiced {
		res.SpeakerID, res.SpeakerChanged = p.speakers.ProcessSegment(
			chunk.Samples, res.Timestamp, res.Timestamp+dur, chunk.Transcript)
	}

	if p.cfg.Analysis.Context {
		res.Context, res.TopicShift = p.context.Update(chunk.Transcript, dur, res.SpeakerID, af)
		if res.Context.Topic != convo.TopicGeneral {
			p.topics[res.Context.Topic] = struct{}{}
		}
	}

	if p.cfg.Analysis.Metadata && voiced {
		p.feed.ProcessAudioChunk(chunk.Samples, res.Timestamp)
		p.metaSeen = true
	}

	res.FraudProbability, res.Confidence = p.fuse(tf, af, audioOK, res.SpeakerID)
	res.RiskLevel = p.riskLevel(res.FraudProbability)
	res.Indicators = p.indicators(tf, af, audioOK, res.SpeakerID)

	res.LatencyMs = float64(time.Since(began).Microseconds()) / 1000
	p.recordStats(res)
	p.publish(res)
	return res, nil
}

// fuse computes the weighted probability over present signals, then routes
// it through the metadata contextual weighting.
func (p *Pipeline) fuse(tf *textfeat.Features, af acoustic.Features, audioOK bool, speakerID string) (prob, confidence float64) {
	sum, wsum := 0.0, 0.0
	if tf != nil {
		sum += tf.FraudScore * weightText
		wsum += weightText
	}
	if audioOK {
		sum += audioBlend(af) * weightAudio
		wsum += weightAudio
	}
	if speakerID != "" {
		sum += p.speakers.FraudEstimate(speakerID) * weightSpeaker
		wsum += weightSpeaker
	}
	if p.cfg.Analysis.Context {
		sum += p.context.RiskAdjustment() * weightContext
		wsum += weightContext
	}
	base := 0.0
	if wsum > 0 {
		base = sum / wsum
	}

	var confParts []float64
	if tf != nil {
		confParts = append(confParts, textConfidence)
	}
	if audioOK {
		confParts = append(confParts, af.QualityScore)
	}
	if speakerID != "" {
		confParts = append(confParts, p.speakers.AverageConfidence())
	}
	if p.metaSeen {
		confParts = append(confParts, p.feed.Integrity())
	}
	for _, c := range confParts {
		confidence += c
	}
	if len(confParts) > 0 {
		confidence /= float64(len(confParts))
	}

	if p.metaSeen {
		base = p.feed.ApplyContextualWeighting(base, confidence)
	}
	return base, confidence
}

func (p *Pipeline) riskLevel(prob float64) string {
	switch {
	case prob >= p.cfg.Thresholds.Blocked:
		return RiskBlocked
	case prob >= p.cfg.Thresholds.Warning:
		return RiskWarning
	}
	return RiskSafe
}

func (p *Pipeline) recordStats(res AnalysisResult) {
	p.chunkCount++
	p.latencies = append(p.latencies, res.LatencyMs)
	if len(p.latencies) > latencyWindow {
		p.latencies = p.latencies[len(p.latencies)-latencyWindow:]
	}
	if res.FraudProbability > p.peak {
		p.peak = res.FraudProbability
	}
}

func (p *Pipeline) publish(res AnalysisResult) {
	alert := res.FraudProbability >= p.cfg.Thresholds.Alert
	if alert {
		p.alertCount++
		p.log.WithFields(logrus.Fields{
			"chunk":       res.ChunkID,
			"probability": res.FraudProbability,
			"risk":        res.RiskLevel,
		}).Warn("fraud alert")
	}
	for _, l := range p.listeners {
		l.OnResult(res)
		if alert {
			l.OnAlert(res)
		}
	}
}

// Active reports the lifecycle state.
func (p *Pipeline) Active() bool { return p.active }

// Roster returns the current speaker roster.
func (p *Pipeline) Roster() []speaker.Snapshot { return p.speakers.Profiles() }

// Conversation returns the current conversation state.
func (p *Pipeline) Conversation() convo.State { return p.context.State() }

// EmotionalTrend returns the current arousal trend label.
func (p *Pipeline) EmotionalTrend() string { return p.context.Trend() }

// Stats returns the running session statistics.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		ChunkCount:      p.chunkCount,
		PeakProbability: p.peak,
		DominantSpeaker: p.speakers.Dominant(),
		AlertCount:      p.alertCount,
	}
	if len(p.latencies) > 0 {
		sum := 0.0
		for _, l := range p.latencies {
			sum += l
		}
		s.AvgLatencyMs = sum / float64(len(p.latencies))
	}
	for t := range p.topics {
		s.Topics = append(s.Topics, t)
	}
	sort.Strings(s.Topics)
	return s
}
