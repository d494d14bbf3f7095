package main

import (
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/callsift/callsift/audio"
	"github.com/callsift/callsift/clients"
	cfg "github.com/callsift/callsift/config"
	"github.com/callsift/callsift/metrics"
	"github.com/callsift/callsift/orchestrator"
	"github.com/callsift/callsift/server"
)

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "callsift",
		Short: "Streaming voice-call fraud and harassment risk scoring",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config yaml")
	root.AddCommand(analyzeCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func loadConfig() *cfg.Root {
	conf, err := cfg.Load(configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	if lvl, err := logrus.ParseLevel(conf.Pipeline.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	return conf
}

func analyzeCmd() *cobra.Command {
	var transcript string
	cmd := &cobra.Command{
		Use:   "analyze <call.wav>",
		Short: "Score a recorded call chunk by chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := loadConfig()
			wav, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}
			if wav.SampleRate != conf.Audio.SampleRate {
				logrus.WithFields(logrus.Fields{
					"file": wav.SampleRate, "config": conf.Audio.SampleRate,
				}).Warn("sample rate mismatch, using file rate")
				conf.Audio.SampleRate = wav.SampleRate
			}

			var asr *clients.TranscribeResponse
			if conf.Services.ASRURL != "" {
				asr, err = clients.NewHTTP().Transcribe(cmd.Context(), conf.Services.ASRURL, args[0])
				if err != nil {
					logrus.WithError(err).Warn("transcription unavailable, scoring audio only")
					asr = nil
				}
			}

			pipe, err := orchestrator.NewPipeline(conf)
			if err != nil {
				return err
			}
			if err := pipe.Start(); err != nil {
				return err
			}

			var results []orchestrator.AnalysisResult
			t := 0.0
			for _, chunk := range audio.Chunks(wav.Samples, conf.Audio.SampleRate, conf.Audio.ChunkSeconds) {
				text := transcript
				if asr != nil {
					dur := float64(len(chunk)) / float64(conf.Audio.SampleRate)
					text = asr.TextForWindow(t, t+dur)
					t += dur
				}
				res, err := pipe.ProcessChunk(orchestrator.AudioChunk{Samples: chunk, Transcript: text})
				if err != nil {
					return err
				}
				results = append(results, res)
				fmt.Printf("%s  t=%6.1fs  p=%.3f  %s  %v\n",
					res.ChunkID, res.Timestamp, res.FraudProbability, res.RiskLevel, res.Indicators)
			}
			pipe.Stop()

			sid, err := pipe.Persist(conf.Paths.Outputs, args[0], results)
			if err != nil {
				return err
			}
			logrus.WithField("session", sid).Info("results written")
			return nil
		},
	}
	cmd.Flags().StringVar(&transcript, "transcript", "", "transcript applied to every chunk when no ASR service is configured")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket scoring API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := loadConfig()
			if conf.Server.MetricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", metrics.Handler())
					logrus.WithField("addr", conf.Server.MetricsAddr).Info("metrics listening")
					if err := http.ListenAndServe(conf.Server.MetricsAddr, mux); err != nil {
						logrus.WithError(err).Error("metrics server stopped")
					}
				}()
			}
			return server.New(conf).ListenAndServe()
		},
	}
}
