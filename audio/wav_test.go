package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWAV(t *testing.T, sampleRate int, channels int, samples []int16) []byte {
	t.Helper()
	var data bytes.Buffer
	require.NoError(t, binary.Write(&data, binary.LittleEndian, samples))

	var b bytes.Buffer
	b.WriteString("RIFF")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint32(36+data.Len())))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint16(1))) // PCM
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint16(channels)))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint32(sampleRate)))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2)))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint16(channels*2)))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint16(16)))

	b.WriteString("data")
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uint32(data.Len())))
	b.Write(data.Bytes())
	return b.Bytes()
}

func TestDecodeWAVMono(t *testing.T) {
	raw := buildWAV(t, 24000, 1, []int16{0, 16384, -16384, 32767})
	f, err := DecodeWAV(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 24000, f.SampleRate)
	require.Len(t, f.Samples, 4)
	assert.InDelta(t, 0.0, f.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, f.Samples[1], 1e-9)
	assert.InDelta(t, -0.5, f.Samples[2], 1e-9)
	assert.InDelta(t, 1.0, f.Samples[3], 1e-4)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	raw := buildWAV(t, 16000, 2, []int16{16384, 0, 0, -16384})
	f, err := DecodeWAV(bytes.NewReader(raw))
	require.NoError(t, err)

	require.Len(t, f.Samples, 2)
	assert.InDelta(t, 0.25, f.Samples[0], 1e-9)
	assert.InDelta(t, -0.25, f.Samples[1], 1e-9)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not a wav file")))
	assert.Error(t, err)
}

func TestDecodePCM16(t *testing.T) {
	b := make([]byte, 4)
	pos, neg := int16(16384), int16(-32768)
	binary.LittleEndian.PutUint16(b[0:2], uint16(pos))
	binary.LittleEndian.PutUint16(b[2:4], uint16(neg))

	out := DecodePCM16(b)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.5, out[0], 1e-9)
	assert.InDelta(t, -1.0, out[1], 1e-9)

	assert.Len(t, DecodePCM16([]byte{1, 2, 3}), 1) // odd trailing byte dropped
}

func TestChunks(t *testing.T) {
	samples := make([]float64, 25)
	out := Chunks(samples, 10, 1.0)
	require.Len(t, out, 3)
	assert.Len(t, out[0], 10)
	assert.Len(t, out[2], 5)

	assert.Nil(t, Chunks(nil, 10, 1.0))
	assert.Nil(t, Chunks(samples, 0, 1.0))
}
