package orchestrator

import (
	"github.com/callsift/callsift/acoustic"
	"github.com/callsift/callsift/textfeat"
)

// audioBlend folds the acoustic composites into the single audio signal
// used by fusion: stress carries most of the weight, with fixed bonuses
// for rapid speech and energy spikes.
func audioBlend(af acoustic.Features) float64 {
	v := 0.4*af.StressScore + 0.3*af.VoiceStress
	if af.SpeechRate > 0.7 {
		v += 0.2
	}
	if af.EnergySpikes > 0.5 {
		v += 0.1
	}
	if v > 1 {
		return 1
	}
	return v
}

// indicators builds the deduplicated list of threshold-crossing
// sub-signals for one chunk, in a stable order.
func (p *Pipeline) indicators(tf *textfeat.Features, af acoustic.Features, audioOK bool, speakerID string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	if tf != nil {
		if tf.Authority.Score > 0.5 {
			add("authority_impersonation")
		}
		if tf.Urgency.Score > 0.5 {
			add("urgency_pressure")
		}
		if tf.PII.Score > 0.5 {
			add("pii_request")
			for _, sub := range tf.PIISubtypes {
				add("pii_request:" + sub)
			}
		}
		if tf.Threat.Score > 0.3 {
			add("threat_language")
		}
		if tf.BigramScore > 0.7 {
			add("scam_phrase")
		}
		if tf.Harassment.Score > 0.3 {
			add("harassment")
		}
	}
	if audioOK {
		if af.VoiceStress > 0.7 {
			add("voice_stress")
		}
		if af.SpeechRate > 0.8 {
			add("rapid_speech")
		}
		if af.EnergySpikes > 0.6 {
			add("energy_spikes")
		}
		if af.NoiseClass == acoustic.NoiseCallCenter {
			add("call_center_background")
		}
	}
	if speakerID != "" && p.speakers.FraudEstimate(speakerID) > 0.6 {
		add("high_risk_speaker:" + speakerID)
	}
	if p.metaSeen {
		if p.feed.MarkerCount() > 3 {
			add("stress_markers")
		}
		if p.feed.Aggregated().Clipping {
			add("audio_clipping")
		}
	}
	return out
}
