package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/callsift/callsift/speaker"
)

// SessionSummary is the end-of-call bundle written next to the per-chunk
// results.
type SessionSummary struct {
	SessionID   string             `json:"session_id"`
	AudioPath   string             `json:"audio_path,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Stats       Stats              `json:"stats"`
	Roster      []speaker.Snapshot `json:"roster"`
	PeakRisk    string             `json:"peak_risk_level"`
}

func mkSessionDir(outputsRoot string) (string, string, error) {
	ts := time.Now().Format("20060102-150405")
	sid := "session_" + ts
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Persist writes the per-chunk results and a session summary under
// outputsRoot and returns the session id.
func (p *Pipeline) Persist(outputsRoot, audioPath string, results []AnalysisResult) (string, error) {
	sid, outDir, err := mkSessionDir(outputsRoot)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(outDir, "results.json"), results); err != nil {
		return "", err
	}
	summary := SessionSummary{
		SessionID:   sid,
		AudioPath:   audioPath,
		GeneratedAt: time.Now(),
		Stats:       p.Stats(),
		Roster:      p.Roster(),
		PeakRisk:    p.riskLevel(p.peak),
	}
	if err := writeJSON(filepath.Join(outDir, "summary.json"), summary); err != nil {
		return "", err
	}
	return sid, nil
}
