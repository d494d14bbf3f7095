package server

import (
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/callsift/callsift/config"
)

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(New(cfg.Default()).Routes())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func pcmSilence(n int) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], 0)
	}
	return b
}

func TestChunkRoundTrip(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"transcript","transcript":"hello there"}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pcmSilence(24000)))

	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "result", msg.Type)
	require.NotNil(t, msg.Result)
	assert.NotEmpty(t, msg.Result.ChunkID)
	assert.Equal(t, "safe", msg.Result.RiskLevel)
	require.NotNil(t, msg.Result.Text)
}

func TestStatsFrame(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pcmSilence(1000)))
	var res outbound
	require.NoError(t, conn.ReadJSON(&res))
	require.Equal(t, "result", res.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stats"}`)))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "stats", msg.Type)
	require.NotNil(t, msg.Stats)
	assert.Equal(t, 1, msg.Stats.ChunkCount)
}

func TestBadControlFrame(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}
