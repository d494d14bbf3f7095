package orchestrator

import (
	"github.com/callsift/callsift/acoustic"
	"github.com/callsift/callsift/convo"
	"github.com/callsift/callsift/textfeat"
)

// Risk bands derived from the fused probability.
const (
	RiskSafe    = "safe"
	RiskWarning = "warning"
	RiskBlocked = "blocked"
)

// AudioChunk is one unit of work: a mono PCM buffer plus the transcript
// covering the same window, when transcription is available. An empty ID
// gets a generated ULID.
type AudioChunk struct {
	ID         string
	Samples    []float64
	Transcript string
}

// AnalysisResult is the per-chunk output pushed to listeners and returned
// to the caller.
type AnalysisResult struct {
	ChunkID   string  `json:"chunkId"`
	Timestamp float64 `json:"timestamp"` // call seconds at chunk start
	Duration  float64 `json:"duration"`

	Acoustic *acoustic.Features `json:"acoustic,omitempty"`
	Text     *textfeat.Features `json:"text,omitempty"`

	SpeakerID      string            `json:"speakerId,omitempty"`
	SpeakerChanged bool              `json:"speakerChanged,omitempty"`
	Context        convo.State       `json:"context"`
	TopicShift     *convo.TopicShift `json:"topicShift,omitempty"`

	FraudProbability float64  `json:"fraudProbability"`
	RiskLevel        string   `json:"riskLevel"`
	Confidence       float64  `json:"confidenceScore"`
	Indicators       []string `json:"indicators"`

	LatencyMs float64 `json:"latencyMs"`
}

// Stats is the running session view.
type Stats struct {
	ChunkCount      int      `json:"chunkCount"`
	AvgLatencyMs    float64  `json:"avgLatencyMs"` // over the last 100 chunks
	PeakProbability float64  `json:"peakProbability"`
	DominantSpeaker string   `json:"dominantSpeaker,omitempty"`
	Topics          []string `json:"topics"`
	AlertCount      int      `json:"alertCount"`
}

// Listener receives per-chunk results and alert notifications. Callbacks
// run synchronously on the processing goroutine.
type Listener interface {
	OnResult(AnalysisResult)
	OnAlert(AnalysisResult)
}
