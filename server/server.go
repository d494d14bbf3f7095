// Package server exposes the pipeline over websocket: clients stream
// binary PCM16 frames plus JSON transcript frames and receive a JSON
// analysis result per chunk. Each connection owns its own session.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/callsift/callsift/audio"
	cfg "github.com/callsift/callsift/config"
	"github.com/callsift/callsift/metrics"
	"github.com/callsift/callsift/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inbound is the JSON control frame. A transcript frame is held and
// attached to the next binary audio frame.
type inbound struct {
	Type       string `json:"type,omitempty"`
	Transcript string `json:"transcript"`
}

// outbound wraps every message pushed to the client.
type outbound struct {
	Type   string                       `json:"type"` // result | alert | stats | error
	Result *orchestrator.AnalysisResult `json:"result,omitempty"`
	Stats  *orchestrator.Stats          `json:"stats,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

// Server routes websocket sessions onto per-connection pipelines.
type Server struct {
	cfg *cfg.Root
	log *logrus.Entry
}

// New creates a server for the given config.
func New(c *cfg.Root) *Server {
	return &Server{cfg: c, log: logrus.WithField("component", "server")}
}

// Routes returns the HTTP mux with the websocket and health endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe blocks serving the websocket API.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.Server.Addr).Info("listening")
	return http.ListenAndServe(s.cfg.Server.Addr, s.Routes())
}

// wsListener forwards pipeline events onto one connection.
type wsListener struct {
	conn *websocket.Conn
	log  *logrus.Entry
}

func (l *wsListener) OnResult(res orchestrator.AnalysisResult) {
	l.send(outbound{Type: "result", Result: &res})
	metrics.ChunksProcessed.Inc()
	metrics.ChunkLatency.Observe(res.LatencyMs / 1000)
}

func (l *wsListener) OnAlert(res orchestrator.AnalysisResult) {
	l.send(outbound{Type: "alert", Result: &res})
	metrics.Alerts.WithLabelValues(res.RiskLevel).Inc()
}

func (l *wsListener) send(msg outbound) {
	if err := l.conn.WriteJSON(msg); err != nil {
		l.log.WithError(err).Debug("write failed")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := ulid.Make().String()
	log := s.log.WithField("session", sessionID)
	log.Info("client connected")
	metrics.WSClients.Inc()
	defer metrics.WSClients.Dec()

	pipe, err := orchestrator.NewPipeline(s.cfg)
	if err != nil {
		log.WithError(err).Error("pipeline construction failed")
		return
	}
	listener := &wsListener{conn: conn, log: log}
	pipe.AddListener(listener)
	if err := pipe.Start(); err != nil {
		log.WithError(err).Error("start failed")
		return
	}
	defer pipe.Stop()

	pendingTranscript := ""
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("client disconnected")
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			chunk := orchestrator.AudioChunk{
				Samples:    audio.DecodePCM16(data),
				Transcript: pendingTranscript,
			}
			pendingTranscript = ""
			if _, err := pipe.ProcessChunk(chunk); err != nil {
				listener.send(outbound{Type: "error", Error: err.Error()})
			}
		case websocket.TextMessage:
			var in inbound
			if err := json.Unmarshal(data, &in); err != nil {
				listener.send(outbound{Type: "error", Error: "bad control frame"})
				continue
			}
			switch in.Type {
			case "", "transcript":
				pendingTranscript = in.Transcript
			case "stats":
				st := pipe.Stats()
				listener.send(outbound{Type: "stats", Stats: &st})
			case "reset":
				pipe.Reset()
				if err := pipe.Start(); err != nil {
					listener.send(outbound{Type: "error", Error: err.Error()})
				}
			default:
				listener.send(outbound{Type: "error", Error: "unknown frame type"})
			}
		}
	}
}
