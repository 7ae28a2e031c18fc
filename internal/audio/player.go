package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/ebitengine/oto/v3"
)

// ErrStopped is passed to the completion callback of a playback that was
// stopped before reaching its end.
var ErrStopped = errors.New("playback stopped")

// PlayerState is the state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PlayerConfig configures the output device.
type PlayerConfig struct {
	SampleRate int           // Device rate; audio at other rates is resampled
	BufferSize time.Duration // Device buffer length
	PollEvery  time.Duration // Completion polling interval
}

// DefaultPlayerConfig matches the default remote synthesis sample rate.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 24000,
		BufferSize: 100 * time.Millisecond,
		PollEvery:  20 * time.Millisecond,
	}
}

func validateConfig(cfg PlayerConfig) error {
	switch cfg.SampleRate {
	case 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d", cfg.SampleRate)
	}
	if cfg.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if cfg.PollEvery <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedContext(cfg PlayerConfig) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferSize,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate = ctx, cfg.SampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != cfg.SampleRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz", otoRate)
	}
	return otoCtx, nil
}

// Player plays synthesis results on the default output device. It
// implements tts.AudioPlayer.
type Player struct {
	ctx    *oto.Context
	cfg    PlayerConfig
	logger *log.Logger

	state atomic.Int32

	mu      sync.Mutex
	current *playback
}

// playback owns one oto player and the samples it reads from, which must
// stay referenced until the player is closed.
type playback struct {
	player *oto.Player
	data   []byte
	length time.Duration
	stop   chan struct{}
	once   sync.Once
	onDone func(error)
}

func (pb *playback) finish(err error) {
	pb.once.Do(func() {
		close(pb.stop)
		pb.player.Pause()
		_ = pb.player.Close()
		if pb.onDone != nil {
			pb.onDone(err)
		}
	})
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		p.logger = l
	}
}

// NewPlayer opens the output device.
func NewPlayer(cfg PlayerConfig, opts ...Option) (*Player, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx, err := sharedContext(cfg)
	if err != nil {
		return nil, err
	}

	p := &Player{
		ctx:    ctx,
		cfg:    cfg,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state.Store(int32(StateStopped))
	return p, nil
}

// Play decodes result and starts playback, replacing anything playing.
// onStart runs once the device is playing. onDone is called exactly once:
// with nil at the natural end, with ErrStopped after Stop, or with the
// context error when ctx ends.
func (p *Player) Play(ctx context.Context, result *tts.SynthesisResult, onStart func(), onDone func(error)) error {
	if p.State() == StateClosed {
		return errors.New("player is closed")
	}

	pcm, err := Decode(result)
	if err != nil {
		return err
	}
	pcm = Resample(pcm, p.cfg.SampleRate)

	p.mu.Lock()
	prev := p.current
	pb := &playback{
		data:   pcm.Data,
		length: pcm.Duration(),
		stop:   make(chan struct{}),
		onDone: onDone,
	}
	pb.player = p.ctx.NewPlayer(bytes.NewReader(pb.data))
	p.current = pb
	p.mu.Unlock()

	if prev != nil {
		prev.finish(ErrStopped)
	}

	pb.player.Play()
	p.state.Store(int32(StatePlaying))
	p.logger.Debug("playback started", "duration", pb.length, "rate", pcm.SampleRate)
	if onStart != nil {
		onStart()
	}

	go p.watch(ctx, pb)
	return nil
}

func (p *Player) watch(ctx context.Context, pb *playback) {
	ticker := time.NewTicker(p.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-pb.stop:
			return
		case <-ctx.Done():
			p.release(pb, ctx.Err())
			return
		case <-ticker.C:
			if !pb.player.IsPlaying() {
				p.release(pb, pb.player.Err())
				return
			}
		}
	}
}

// release finishes pb and marks the player stopped if pb is still current.
func (p *Player) release(pb *playback, err error) {
	p.mu.Lock()
	if p.current == pb {
		p.current = nil
		p.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
	}
	p.mu.Unlock()
	pb.finish(err)
}

// Stop halts playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb != nil {
		p.release(pb, ErrStopped)
	}
	return nil
}

// State returns the current state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// Close stops playback. The device stays open for the process lifetime.
func (p *Player) Close() error {
	err := p.Stop()
	p.state.Store(int32(StateClosed))
	return err
}
