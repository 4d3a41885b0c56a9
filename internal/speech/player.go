package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/tosone/minimp3"
)

var errPlaybackStopped = errors.New("playback stopped")

// Player owns the single networked-audio handle.
type Player interface {
	// Play blocks until the clip ends, ctx is done or Stop is called.
	Play(ctx context.Context, mp3 []byte) error
	// Stop pauses, rewinds and releases the active handle. Safe when idle.
	Stop()
	Playing() bool
}

// OtoPlayer decodes MPEG audio with minimp3 and plays it through oto.
// The oto context is created on first use with the first clip's sample rate.
type OtoPlayer struct {
	initOnce   sync.Once
	initErr    error
	otoCtx     *oto.Context
	sampleRate int

	mu     sync.Mutex
	active *oto.Player
}

func NewOtoPlayer() *OtoPlayer {
	return &OtoPlayer{}
}

func (p *OtoPlayer) Play(ctx context.Context, mp3 []byte) error {
	dec, pcm, err := minimp3.DecodeFull(mp3)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	if len(pcm) == 0 || dec.SampleRate <= 0 {
		return errors.New("decode mp3: no audio frames")
	}
	pcm = toStereo16(pcm, dec.Channels)

	if err := p.init(dec.SampleRate); err != nil {
		return err
	}
	if dec.SampleRate != p.sampleRate {
		return fmt.Errorf("audio sample rate %d does not match output rate %d", dec.SampleRate, p.sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	player := p.otoCtx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Lock()
	prev := p.active
	p.active = player
	p.mu.Unlock()
	if prev != nil {
		releasePlayer(prev)
	}

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if p.take(player) {
				releasePlayer(player)
			}
			return ctx.Err()
		case <-ticker.C:
			if player.IsPlaying() {
				continue
			}
			if !p.take(player) {
				return errPlaybackStopped
			}
			playErr := player.Err()
			_ = player.Close()
			return playErr
		}
	}
}

func (p *OtoPlayer) Stop() {
	p.mu.Lock()
	active := p.active
	p.active = nil
	p.mu.Unlock()
	if active != nil {
		releasePlayer(active)
	}
}

func (p *OtoPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil && p.active.IsPlaying()
}

// take clears the active handle if it is still player and reports ownership.
func (p *OtoPlayer) take(player *oto.Player) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != player {
		return false
	}
	p.active = nil
	return true
}

func (p *OtoPlayer) init(sampleRate int) error {
	p.initOnce.Do(func() {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.initErr = fmt.Errorf("open audio device: %w", err)
			return
		}
		<-ready
		p.otoCtx = otoCtx
		p.sampleRate = sampleRate
	})
	return p.initErr
}

func releasePlayer(pl *oto.Player) {
	pl.Pause()
	_, _ = pl.Seek(0, io.SeekStart)
	_ = pl.Close()
}

// toStereo16 duplicates mono signed 16-bit samples into both channels.
func toStereo16(pcm []byte, channels int) []byte {
	if channels != 1 {
		return pcm
	}
	out := make([]byte, 0, len(pcm)*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out = append(out, pcm[i], pcm[i+1], pcm[i], pcm[i+1])
	}
	return out
}
