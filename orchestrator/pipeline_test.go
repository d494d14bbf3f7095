package orchestrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsift/callsift/acoustic"
	cfg "github.com/callsift/callsift/config"
	"github.com/callsift/callsift/convo"
)

func sine(freq, amp, seconds float64, rate int) []float64 {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg.Default())
	require.NoError(t, err)
	return p
}

func startedPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := newTestPipeline(t)
	require.NoError(t, p.Start())
	return p
}

type recordingListener struct {
	results []AnalysisResult
	alerts  []AnalysisResult
}

func (l *recordingListener) OnResult(r AnalysisResult) { l.results = append(l.results, r) }
func (l *recordingListener) OnAlert(r AnalysisResult)  { l.alerts = append(l.alerts, r) }

func TestProcessChunkRequiresActive(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.ProcessChunk(AudioChunk{Samples: sine(200, 0.5, 1, 24000)})
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, newTestPipeline(t).Stats(), p.Stats())

	p.Stop() // stop while idle is a no-op
	_, err = p.ProcessChunk(AudioChunk{})
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestStartStopLifecycle(t *testing.T) {
	p := newTestPipeline(t)
	assert.False(t, p.Active())
	require.NoError(t, p.Start())
	assert.True(t, p.Active())
	assert.ErrorIs(t, p.Start(), ErrAlreadyActive)
	p.Stop()
	assert.False(t, p.Active())
	require.NoError(t, p.Start())
}

func TestZeroChunkIsSafe(t *testing.T) {
	p := startedPipeline(t)
	res, err := p.ProcessChunk(AudioChunk{Samples: make([]float64, 24000)})
	require.NoError(t, err)

	require.NotNil(t, res.Acoustic)
	assert.Equal(t, acoustic.NoiseClean, res.Acoustic.NoiseClass)
	assert.False(t, res.Acoustic.Voiced())
	assert.Zero(t, res.Acoustic.StressScore)
	assert.Empty(t, res.SpeakerID)
	assert.Equal(t, RiskSafe, res.RiskLevel)
	assert.NotEmpty(t, res.ChunkID)
	assert.InDelta(t, 1.0, res.Duration, 1e-9)
}

func TestScamTranscriptBlocksWithNeutralAudio(t *testing.T) {
	p := startedPipeline(t)
	listener := &recordingListener{}
	p.AddListener(listener)

	res, err := p.ProcessChunk(AudioChunk{
		Samples:    make([]float64, 60000), // silence: only text and context fuse
		Transcript: "This is the IRS. Pay immediately with a gift card or face arrest.",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Text)
	assert.GreaterOrEqual(t, res.Text.FraudScore, 0.7)
	assert.GreaterOrEqual(t, res.FraudProbability, 0.8)
	assert.Equal(t, RiskBlocked, res.RiskLevel)
	assert.Contains(t, res.Indicators, "authority_impersonation")
	assert.Contains(t, res.Indicators, "urgency_pressure")
	assert.Contains(t, res.Indicators, "scam_phrase")
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	assert.Len(t, listener.results, 1)
	assert.Len(t, listener.alerts, 1)
	assert.Equal(t, 1, p.Stats().AlertCount)
}

func TestBenignTranscriptStaysSafe(t *testing.T) {
	p := startedPipeline(t)
	res, err := p.ProcessChunk(AudioChunk{
		Samples:    sine(200, 0.4, 2.5, 24000),
		Transcript: "Hi, how are you doing today?",
	})
	require.NoError(t, err)
	assert.Less(t, res.FraudProbability, 0.5)
	assert.Equal(t, RiskSafe, res.RiskLevel)
	assert.NotEmpty(t, res.SpeakerID)
}

func TestStableSpeakerAcrossChunks(t *testing.T) {
	p := startedPipeline(t)
	voice := sine(200, 0.5, 1.0, 24000)

	first, err := p.ProcessChunk(AudioChunk{Samples: voice})
	require.NoError(t, err)
	second, err := p.ProcessChunk(AudioChunk{Samples: voice})
	require.NoError(t, err)

	assert.Equal(t, first.SpeakerID, second.SpeakerID)
	assert.False(t, second.SpeakerChanged)
	assert.Len(t, p.Roster(), 1)
	assert.Equal(t, first.SpeakerID, p.Stats().DominantSpeaker)
}

func TestEscalatingEnergyYieldsEscalatingTrend(t *testing.T) {
	p := startedPipeline(t)
	for i := 1; i <= 10; i++ {
		_, err := p.ProcessChunk(AudioChunk{Samples: sine(200, 0.1*float64(i), 1.0, 24000)})
		require.NoError(t, err)
	}
	assert.Equal(t, convo.TrendEscalating, p.EmotionalTrend())
}

func TestOutputsStayBounded(t *testing.T) {
	p := startedPipeline(t)
	chunks := []AudioChunk{
		{Samples: make([]float64, 1000)},
		{Samples: sine(120, 0.9, 2.5, 24000), Transcript: "pay the irs immediately or face arrest, buy gift cards"},
		{Samples: sine(400, 0.2, 0.5, 24000)},
		{Transcript: "hello there"},
	}
	for _, c := range chunks {
		res, err := p.ProcessChunk(c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.FraudProbability, 0.0)
		assert.LessOrEqual(t, res.FraudProbability, 1.0)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
	stats := p.Stats()
	assert.Equal(t, len(chunks), stats.ChunkCount)
	assert.GreaterOrEqual(t, stats.PeakProbability, 0.0)
	assert.LessOrEqual(t, stats.PeakProbability, 1.0)
}

func TestResetMatchesFreshPipeline(t *testing.T) {
	p := startedPipeline(t)
	_, err := p.ProcessChunk(AudioChunk{
		Samples:    sine(200, 0.5, 2.5, 24000),
		Transcript: "wire the money immediately",
	})
	require.NoError(t, err)

	p.Reset()
	p.Reset() // idempotent

	fresh := newTestPipeline(t)
	assert.Equal(t, fresh.Stats(), p.Stats())
	assert.Equal(t, fresh.Roster(), p.Roster())
	assert.Equal(t, fresh.Conversation(), p.Conversation())
	assert.False(t, p.Active())
	_, err = p.ProcessChunk(AudioChunk{})
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestTimestampsAccumulate(t *testing.T) {
	p := startedPipeline(t)
	voice := sine(200, 0.5, 2.0, 24000)

	first, err := p.ProcessChunk(AudioChunk{Samples: voice})
	require.NoError(t, err)
	second, err := p.ProcessChunk(AudioChunk{Samples: voice})
	require.NoError(t, err)

	assert.Zero(t, first.Timestamp)
	assert.InDelta(t, 2.0, second.Timestamp, 1e-9)
}

func TestSpeakerTrackingWithoutAcousticAnalysis(t *testing.T) {
	c := cfg.Default()
	c.Analysis.Acoustic = false
	p, err := NewPipeline(c)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	res, err := p.ProcessChunk(AudioChunk{Samples: sine(200, 0.5, 1.0, 24000)})
	require.NoError(t, err)

	assert.Nil(t, res.Acoustic)
	assert.NotEmpty(t, res.SpeakerID)
	assert.Len(t, p.Roster(), 1)
	assert.NotContains(t, res.Indicators, "voice_stress")
}

func TestMetadataFeedWithoutSpeakerAnalysis(t *testing.T) {
	c := cfg.Default()
	c.Analysis.Speaker = false
	p, err := NewPipeline(c)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	res, err := p.ProcessChunk(AudioChunk{Samples: sine(200, 0.5, 1.0, 24000)})
	require.NoError(t, err)

	assert.Empty(t, res.SpeakerID)
	assert.Empty(t, p.Roster())
	assert.True(t, p.metaSeen)
}

func TestTopicsStatOmitsGeneral(t *testing.T) {
	p := startedPipeline(t)

	_, err := p.ProcessChunk(AudioChunk{Samples: sine(200, 0.4, 1.0, 24000)})
	require.NoError(t, err)
	assert.Empty(t, p.Stats().Topics)

	_, err = p.ProcessChunk(AudioChunk{
		Samples:    sine(200, 0.4, 1.0, 24000),
		Transcript: "wire the money to this account",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"financial"}, p.Stats().Topics)
}

func TestConversationAccumulatesTurnsAndDuration(t *testing.T) {
	p := startedPipeline(t)
	voice := sine(200, 0.5, 2.0, 24000)

	_, err := p.ProcessChunk(AudioChunk{Samples: voice, Transcript: "hello"})
	require.NoError(t, err)
	_, err = p.ProcessChunk(AudioChunk{Samples: voice, Transcript: "hi there"})
	require.NoError(t, err)

	state := p.Conversation()
	assert.Equal(t, 1, state.Turns) // one speaker so far
	assert.InDelta(t, 4.0, state.Duration, 1e-9)
}

func TestAudioBlend(t *testing.T) {
	af := acoustic.Features{StressScore: 0.5, VoiceStress: 0.5}
	assert.InDelta(t, 0.35, audioBlend(af), 1e-9)

	af.SpeechRate = 0.8
	af.EnergySpikes = 0.6
	assert.InDelta(t, 0.65, audioBlend(af), 1e-9)

	af.StressScore = 1
	af.VoiceStress = 1
	assert.Equal(t, 1.0, audioBlend(af))
}

func TestRiskLevels(t *testing.T) {
	p := newTestPipeline(t)
	assert.Equal(t, RiskSafe, p.riskLevel(0.2))
	assert.Equal(t, RiskWarning, p.riskLevel(0.5))
	assert.Equal(t, RiskBlocked, p.riskLevel(0.85))
}
