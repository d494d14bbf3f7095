// Package audio decodes mono PCM16 WAV files and slices sample buffers
// into fixed-duration chunks for the pipeline.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// File is a decoded mono PCM stream.
type File struct {
	SampleRate int
	Samples    []float64
}

// ReadWAV decodes a 16-bit PCM WAV file. Multi-channel input is downmixed
// by averaging.
func ReadWAV(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV decodes 16-bit PCM WAV from r.
func DecodeWAV(r io.Reader) (*File, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		data       []byte
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("wav chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wav chunk %s: %w", id, err)
		}
		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			data = body
		}
		if size%2 == 1 {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil {
				break
			}
		}
	}
	if sampleRate == 0 || data == nil {
		return nil, fmt.Errorf("wav missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", bits)
	}
	if channels < 1 {
		channels = 1
	}

	frames := len(data) / 2 / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			sum += float64(int16(binary.LittleEndian.Uint16(data[off : off+2])))
		}
		samples[i] = sum / float64(channels) / 32768
	}
	return &File{SampleRate: sampleRate, Samples: samples}, nil
}

// DecodePCM16 converts raw little-endian 16-bit PCM bytes to samples.
// A trailing odd byte is dropped.
func DecodePCM16(b []byte) []float64 {
	n := len(b) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b[i*2:i*2+2]))) / 32768
	}
	return out
}

// Chunks slices samples into chunkSeconds-sized buffers. The final short
// chunk is kept; the pipeline tolerates any duration.
func Chunks(samples []float64, sampleRate int, chunkSeconds float64) [][]float64 {
	if sampleRate <= 0 || chunkSeconds <= 0 || len(samples) == 0 {
		return nil
	}
	size := int(float64(sampleRate) * chunkSeconds)
	if size <= 0 {
		return nil
	}
	var out [][]float64
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		out = append(out, samples[start:end])
	}
	return out
}
