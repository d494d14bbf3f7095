package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsift/callsift/acoustic"
)

func TestTopicDetectionFirstMatchWins(t *testing.T) {
	tr := NewTracker()

	// mentions both money and the IRS; financial is evaluated first
	state, shift := tr.Update("send the money to my bank account, says the irs", 2.5, "", acoustic.Features{})
	require.NotNil(t, shift)
	assert.Equal(t, TopicGeneral, shift.From)
	assert.Equal(t, "financial", shift.To)
	assert.Equal(t, "financial", state.Topic)
	assert.Greater(t, state.TopicConfidence, 0.0)
	assert.LessOrEqual(t, state.TopicConfidence, 1.0)
}

func TestTopicShiftOnlyOnChange(t *testing.T) {
	tr := NewTracker()
	_, shift := tr.Update("wire the payment now", 2.5, "", acoustic.Features{})
	require.NotNil(t, shift)

	_, shift = tr.Update("transfer the money to this account", 2.5, "", acoustic.Features{})
	assert.Nil(t, shift)

	_, shift = tr.Update("you won a prize in the lottery", 2.5, "", acoustic.Features{})
	require.NotNil(t, shift)
	assert.Equal(t, "financial", shift.From)
	assert.Equal(t, "prize_scam", shift.To)
	assert.Len(t, tr.Shifts(), 2)
}

func TestNoTopicMatchKeepsCurrent(t *testing.T) {
	tr := NewTracker()
	tr.Update("please verify the payment", 2.5, "", acoustic.Features{})
	state, shift := tr.Update("the weather is lovely today", 2.5, "", acoustic.Features{})
	assert.Nil(t, shift)
	assert.Equal(t, "financial", state.Topic)
}

func TestEscalatingTrend(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= 10; i++ {
		af := acoustic.Features{EnergyMean: 0.1 * float64(i)}
		tr.Update("", 1, "", af)
	}
	assert.Equal(t, TrendEscalating, tr.Trend())
}

func TestDeescalatingTrend(t *testing.T) {
	tr := NewTracker()
	for i := 10; i >= 1; i-- {
		af := acoustic.Features{EnergyMean: 0.1 * float64(i)}
		tr.Update("", 1, "", af)
	}
	assert.Equal(t, TrendDeescalating, tr.Trend())
}

func TestShortHistoryIsStable(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		tr.Update("", 1, "", acoustic.Features{EnergyMean: float64(i) * 0.2})
	}
	assert.Equal(t, TrendStable, tr.Trend())
}

func TestEmotionHistoryCap(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < emotionHistoryCap+20; i++ {
		tr.Update("", 1, "", acoustic.Features{})
	}
	assert.Len(t, tr.arousalHistory, emotionHistoryCap)
	assert.Len(t, tr.emotions, emotionHistoryCap)
}

func TestEmotionClassification(t *testing.T) {
	cases := []struct {
		name string
		af   acoustic.Features
		want string
	}{
		{"stress dominates", acoustic.Features{StressScore: 0.9, EnergyMean: 0.9, SpeechRate: 0.9}, EmotionStressed},
		{"angry", acoustic.Features{StressScore: 0.7, PitchVariance: 0.9, EnergyMean: 0.8, SpeechRate: 0.8}, EmotionAngry},
		{"confident", acoustic.Features{StressScore: 0.1, EnergyMean: 0.6}, EmotionConfident},
		{"neutral", acoustic.Features{}, EmotionNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := classifyEmotion(tc.af)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestContinuityDropsOnFragments(t *testing.T) {
	tr := NewTracker()
	coherent, _ := tr.Update("I would like to talk about my account balance please.", 2.5, "", acoustic.Features{})
	assert.InDelta(t, 1.0, coherent.Continuity, 1e-9)

	for i := 0; i < 6; i++ {
		tr.Update("uh. no. hm.", 2.5, "", acoustic.Features{})
	}
	state := tr.State()
	assert.Less(t, state.Continuity, 0.65)
}

func TestSilentChunksDecayContinuityToDefault(t *testing.T) {
	tr := NewTracker()
	tr.Update("I would like to talk about my account balance please.", 2.5, "", acoustic.Features{})
	require.InDelta(t, 1.0, tr.State().Continuity, 1e-9)

	for i := 0; i < 20; i++ {
		tr.Update("", 2.5, "", acoustic.Features{})
	}
	state := tr.State()
	assert.Less(t, state.Continuity, 0.55)
	assert.Greater(t, state.Continuity, 0.5-1e-9)
}

func TestTurnsAndDuration(t *testing.T) {
	tr := NewTracker()
	tr.Update("hello", 2.5, "speaker_1", acoustic.Features{})
	tr.Update("hi there", 2.5, "speaker_1", acoustic.Features{})
	tr.Update("who is this", 1.5, "speaker_2", acoustic.Features{})
	tr.Update("", 1.0, "", acoustic.Features{}) // silence keeps the turn count

	state := tr.State()
	assert.Equal(t, 2, state.Turns)
	assert.InDelta(t, 7.5, state.Duration, 1e-9)

	tr.Update("me again", 2.0, "speaker_1", acoustic.Features{})
	assert.Equal(t, 3, tr.State().Turns)
}

func TestRiskAdjustment(t *testing.T) {
	tr := NewTracker()
	assert.Zero(t, tr.RiskAdjustment()) // general topic carries no risk

	tr.Update("pay the fine with a gift card", 2.5, "", acoustic.Features{})
	assert.InDelta(t, 0.8, tr.RiskAdjustment(), 1e-9)

	for i := 1; i <= 10; i++ {
		tr.Update("", 1, "", acoustic.Features{EnergyMean: 0.1 * float64(i)})
	}
	// escalating trend scales the topic risk up, clamped to 1
	assert.InDelta(t, 0.92, tr.RiskAdjustment(), 1e-9)
}

func TestResetIdempotence(t *testing.T) {
	tr := NewTracker()
	tr.Update("wire the money now", 2.5, "speaker_1", acoustic.Features{EnergyMean: 0.9})
	tr.Reset()
	tr.Reset()

	fresh := NewTracker()
	assert.Equal(t, fresh.State(), tr.State())
	assert.Empty(t, tr.Shifts())
}
