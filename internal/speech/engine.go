package speech

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrEngineUnavailable = errors.New("local speech engine unavailable")

// Delivery holds the prosody applied to every local utterance of a request.
type Delivery struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

var (
	urgentDelivery = Delivery{Rate: 0.75, Pitch: 0.8, Volume: 1.0}
	calmDelivery   = Delivery{Rate: 0.7, Pitch: 0.9, Volume: 0.9}
)

const (
	urgentSentencePause = 300 * time.Millisecond
	calmSentencePause   = 500 * time.Millisecond

	defaultLanguage = "en-US"
)

// DeliveryFor returns the local prosody for an urgent or routine advisory.
func DeliveryFor(urgent bool) Delivery {
	if urgent {
		return urgentDelivery
	}
	return calmDelivery
}

// Voice is one voice exposed by a local engine.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang,omitempty"`
}

// Utterance is a single sentence handed to the engine.
type Utterance struct {
	Text  string
	Voice *Voice
	Lang  string
	Delivery
}

// Engine is the local synthesis collaborator. It accepts one utterance at a
// time; Speak blocks until the utterance finishes, Cancel stops it.
type Engine interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) error
	Cancel()
	Speaking() bool
}

// DefaultPreferredVoices lists well-known high quality voices, best first.
var DefaultPreferredVoices = []string{
	"Google US English",
	"Microsoft David",
	"Microsoft Zira",
	"Daniel",
	"Samantha",
	"Alex",
	"Siri",
	"Victoria",
	"Karen",
	"Tessa",
	"Moira",
}

var qualityVoiceMarkers = []string{"Google", "Microsoft", "Enhanced", "Premium"}

// SelectVoice picks the first voice matching the preference order, then any
// voice flagged as a quality voice, else nil for the engine default.
func SelectVoice(voices []Voice, preferred []string) *Voice {
	for _, name := range preferred {
		want := strings.ToLower(strings.TrimSpace(name))
		if want == "" {
			continue
		}
		for i := range voices {
			if strings.Contains(strings.ToLower(voices[i].Name), want) {
				v := voices[i]
				return &v
			}
		}
	}
	for i := range voices {
		for _, marker := range qualityVoiceMarkers {
			if strings.Contains(voices[i].Name, marker) {
				v := voices[i]
				return &v
			}
		}
	}
	return nil
}
