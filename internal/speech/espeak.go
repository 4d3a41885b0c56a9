package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

type EspeakConfig struct {
	// Binary overrides the engine executable. Empty means espeak-ng, then espeak.
	Binary string
	// BaseWPM is the words-per-minute rate that maps to Delivery.Rate 1.0.
	BaseWPM int
}

// EspeakEngine runs espeak-ng once per utterance and plays straight to the
// default audio device.
type EspeakEngine struct {
	binary  string
	baseWPM int

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewEspeakEngine(cfg EspeakConfig) (*EspeakEngine, error) {
	candidates := []string{"espeak-ng", "espeak"}
	if b := strings.TrimSpace(cfg.Binary); b != "" {
		candidates = []string{b}
	}
	var path string
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, fmt.Errorf("%w: install espeak-ng or espeak", ErrEngineUnavailable)
	}
	if cfg.BaseWPM <= 0 {
		cfg.BaseWPM = 175
	}
	return &EspeakEngine{binary: path, baseWPM: cfg.BaseWPM}, nil
}

func (e *EspeakEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, e.binary, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list espeak voices: %w", err)
	}
	return parseEspeakVoices(out), nil
}

func (e *EspeakEngine) Speak(ctx context.Context, u Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, e.binary, e.args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.mu.Lock()
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start espeak: %w", err)
	}
	e.cmd = cmd
	e.mu.Unlock()

	err := cmd.Wait()

	e.mu.Lock()
	if e.cmd == cmd {
		e.cmd = nil
	}
	e.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("espeak: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Cancel kills the running utterance. Safe when idle.
func (e *EspeakEngine) Cancel() {
	e.mu.Lock()
	cmd := e.cmd
	e.cmd = nil
	e.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (e *EspeakEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil
}

func (e *EspeakEngine) args(u Utterance) []string {
	wpm := int(float64(e.baseWPM) * nonZero(u.Rate, 1))
	pitch := clampInt(int(50*nonZero(u.Pitch, 1)), 0, 99)
	amp := clampInt(int(100*nonZero(u.Volume, 1)), 0, 200)

	args := []string{
		"-s", strconv.Itoa(wpm),
		"-p", strconv.Itoa(pitch),
		"-a", strconv.Itoa(amp),
	}
	switch {
	case u.Voice != nil && u.Voice.ID != "":
		args = append(args, "-v", u.Voice.ID)
	case u.Lang != "":
		args = append(args, "-v", strings.ToLower(u.Lang))
	}
	return append(args, "--stdin")
}

// parseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 10)
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{
			ID:   fields[1],
			Name: strings.ReplaceAll(fields[3], "_", " "),
			Lang: fields[1],
		})
	}
	return voices
}

func nonZero(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
