package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabsSynthesizeSendsVoiceRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "mp3_44100_128" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "sk_test" {
			t.Errorf("xi-api-key = %q", got)
		}

		var body synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Text != "Cleared to land." || body.ModelID != "eleven_monolingual_v1" {
			t.Errorf("body = %+v", body)
		}
		if body.VoiceSettings != DefaultVoiceSettings() {
			t.Errorf("voice settings = %+v", body.VoiceSettings)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{APIKey: " sk_test ", BaseURL: srv.URL + "/", VoiceID: "voice-1"})
	audio, err := c.Synthesize(context.Background(), "Cleared to land.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3-audio" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestElevenLabsSynthesizeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL})
	_, err := c.Synthesize(context.Background(), "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Synthesize() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Body != "quota exceeded" {
		t.Fatalf("status error = %+v", statusErr)
	}
}

func TestElevenLabsAvailable(t *testing.T) {
	cases := map[string]bool{
		"":             false,
		"YOUR_API_KEY": false,
		"abc123":       false,
		"sk_abc123":    true,
	}
	for key, want := range cases {
		c := NewElevenLabsClient(ElevenLabsConfig{APIKey: key})
		if got := c.Available(); got != want {
			t.Fatalf("Available(%q) = %v, want %v", key, got, want)
		}
	}
	if _, err := NewElevenLabsClient(ElevenLabsConfig{}).Synthesize(context.Background(), "x"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Synthesize() without key error = %v, want ErrMissingCredential", err)
	}
}
