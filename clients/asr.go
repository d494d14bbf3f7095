// Package clients holds thin HTTP clients for the external services the
// pipeline can consume. Only transcription is wired; the core never calls
// out on its own.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type HTTP struct{ c *http.Client }

func NewHTTP() *HTTP { return &HTTP{c: &http.Client{Timeout: 60 * time.Second}} }

// TranscriptSegment is one timed span of recognized speech.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscribeResponse struct {
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
}

// Transcribe uploads an audio file to the transcription service and
// returns its timed segments.
func (h *HTTP) Transcribe(ctx context.Context, url, audioPath string) (*TranscribeResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcribe %s: %s", resp.Status, string(body))
	}

	var out TranscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("transcribe decode: %w", err)
	}
	return &out, nil
}

// TextForWindow joins the segments overlapping [t0,t1) into one chunk
// transcript.
func (r *TranscribeResponse) TextForWindow(t0, t1 float64) string {
	text := ""
	for _, s := range r.Segments {
		if s.End <= t0 || s.Start >= t1 {
			continue
		}
		if text != "" {
			text += " "
		}
		text += s.Text
	}
	return text
}
