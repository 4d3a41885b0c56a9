package speech

import (
	"errors"
	"strings"
)

// Provider selects which backend vocalizes a request.
type Provider string

const (
	// ProviderLocal is on-device synthesis: free, always available when an engine is installed.
	ProviderLocal Provider = "local"
	// ProviderRemote is the networked ElevenLabs voice. It needs a credential.
	ProviderRemote Provider = "elevenlabs"
)

var ErrUnknownProvider = errors.New("unknown tts provider")

// ParseProvider maps user input to a Provider. The legacy browser values
// "web_speech" and "remote" are accepted as aliases.
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "local", "web_speech":
		return ProviderLocal, nil
	case "elevenlabs", "remote":
		return ProviderRemote, nil
	default:
		return "", ErrUnknownProvider
	}
}

func (p Provider) Valid() bool {
	return p == ProviderLocal || p == ProviderRemote
}
