package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/cloud"
	"github.com/dgnsrekt/readaloud/tts/engines/local"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
	"github.com/dgnsrekt/readaloud/tts/reader"
	"github.com/dgnsrekt/readaloud/tts/sentence"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/viper"
)

const megabyte = 1 << 20

// stack holds the collaborators of a reader and releases them.
type stack struct {
	opts    []reader.Option
	closers []func() error
}

func (s *stack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}
}

func newDetector() *sentence.Detector {
	opts := []sentence.Option{sentence.WithLogger(log.Default())}
	if abbreviations {
		opts = append(opts, sentence.WithAbbreviations())
	}
	return sentence.NewDetector(opts...)
}

// newCloudClient builds the remote client with its quota ledger and cache.
func newCloudClient(cfg tts.Config, s *stack) (*cloud.Client, *cloud.Quota, error) {
	quota, err := cloud.NewQuota(cfg.Cloud.LedgerPath, cfg.Cloud.MonthlyQuota)
	if err != nil {
		return nil, nil, err
	}
	opts := []cloud.Option{cloud.WithQuota(quota), cloud.WithLogger(log.Default())}

	if cfg.Cache.Enabled {
		cc := cache.DefaultConfig()
		cc.MemoryCapacity = int64(cfg.Cache.MemoryMB) * megabyte
		cc.DiskCapacity = int64(cfg.Cache.DiskMB) * megabyte
		cc.DiskPath = cfg.Cache.Dir
		cc.TTL = cfg.Cache.TTL
		mgr, err := cache.NewManager(cc, log.Default())
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, mgr.Close)
		opts = append(opts, cloud.WithCache(mgr))
	}

	if cfg.Cloud.APIKey == "" {
		log.Warn("no cloud api key configured")
	}
	return cloud.New(cfg.Cloud, opts...), quota, nil
}

// buildStack wires the engines the configuration asks for.
func buildStack(cfg tts.Config) (*stack, error) {
	s := &stack{opts: []reader.Option{
		reader.WithLogger(log.Default()),
		reader.WithDetector(newDetector()),
	}}

	switch cfg.Engine {
	case tts.EngineMock:
		s.opts = append(s.opts,
			reader.WithSynthesizer(mock.NewSynthesizer()),
			reader.WithPlayer(audio.NewMockPlayer(1)),
			reader.WithLocalEngine(mock.New()))
		return s, nil

	case tts.EngineLocal:
		engine, err := local.New(cfg.Local, local.WithLogger(log.Default()))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, engine.Stop)
		s.opts = append(s.opts, reader.WithLocalEngine(engine))
		return s, nil
	}

	client, _, err := newCloudClient(cfg, s)
	if err != nil {
		s.close()
		return nil, err
	}
	pc := audio.DefaultPlayerConfig()
	pc.SampleRate = cfg.Cloud.SampleRateHertz
	player, err := audio.NewPlayer(pc, audio.WithLogger(log.Default()))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}
	s.closers = append(s.closers, player.Close)
	s.opts = append(s.opts, reader.WithSynthesizer(client), reader.WithPlayer(player))

	if cfg.FallbackToLocal {
		if engine, err := local.New(cfg.Local, local.WithLogger(log.Default())); err == nil {
			s.closers = append(s.closers, engine.Stop)
			s.opts = append(s.opts, reader.WithLocalEngine(engine))
		} else {
			log.Debug("no local fallback", "error", err)
		}
	}
	return s, nil
}

// runPlain speaks sel and prints each sentence as it is highlighted.
func runPlain(ctx context.Context, cfg tts.Config, sel *dom.Range, w io.Writer) error {
	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	done := make(chan tts.SessionFinishedMsg, 1)
	printer := &linePrinter{w: w, width: int(width)} //nolint:gosec
	opts := append(s.opts,
		reader.WithListener(printer),
		reader.WithOnFinish(func(msg tts.SessionFinishedMsg) { done <- msg }))

	r, err := reader.New(cfg, opts...)
	if err != nil {
		return err
	}
	if _, err := r.Speak(ctx, sel); err != nil {
		return err
	}

	select {
	case msg := <-done:
		return msg.Err
	case <-ctx.Done():
		r.Stop()
		<-done
		return nil
	}
}

// linePrinter writes highlighted sentences to a terminal without a TUI.
type linePrinter struct {
	w     io.Writer
	width int
}

func (p *linePrinter) HighlightStarted(ev tts.HighlightEvent) {
	text := strings.Join(strings.Fields(ev.Text), " ")
	prefix := "[all] "
	if ev.Index >= 0 {
		prefix = fmt.Sprintf("[%d/%d] ", ev.Index+1, ev.Total)
	}
	if p.width > len(prefix) {
		text = wordwrap.String(text, p.width-len(prefix))
		text = strings.ReplaceAll(text, "\n", "\n"+strings.Repeat(" ", len(prefix)))
	}
	_, _ = fmt.Fprintln(p.w, faint(prefix)+spoken(text))
}

func (p *linePrinter) HighlightCleared() {}

func runTUI(cfg tts.Config, doc *document.Document, sel *dom.Range) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Width = width
	uiCfg.EnableMouse = mouse
	uiCfg.AutoSpeak = true
	uiCfg.Source = doc.Source

	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}
	opts := append(s.opts,
		reader.WithListener(tts.ProgramListener{Send: send}),
		reader.WithOnFinish(func(msg tts.SessionFinishedMsg) { send(msg) }))

	r, err := reader.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer r.Stop()

	stop := make(chan struct{})
	defer close(stop)
	if err := tts.WatchConfig(viper.GetViper(), stop, func(next tts.Config) {
		if err := applyFlags(rootCmd, &next); err != nil {
			log.Warn("ignoring reloaded configuration", "error", err)
			return
		}
		r.UpdateConfig(next)
	}); err != nil {
		log.Debug("not watching configuration", "error", err)
	}

	p = ui.NewProgram(uiCfg, sel, r)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// errNoVoices is returned when no engine offers a voice.
var errNoVoices = errors.New("no voices available")

// listVoices collects the voices of every engine the configuration can reach.
func listVoices(ctx context.Context, cfg tts.Config, language string) ([]tts.Voice, error) {
	var voices []tts.Voice

	switch cfg.Engine {
	case tts.EngineMock:
		return mock.New().Voices(), nil
	case tts.EngineCloud:
		if cfg.Cloud.APIKey != "" {
			client := cloud.New(cfg.Cloud, cloud.WithLogger(log.Default()))
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			remote, err := client.Voices(ctx, language)
			if err != nil {
				return nil, err
			}
			voices = append(voices, remote...)
		}
	}

	if engine, err := local.New(cfg.Local, local.WithLogger(log.Default())); err == nil {
		voices = append(voices, engine.Voices()...)
	}
	if len(voices) == 0 {
		return nil, errNoVoices
	}
	return voices, nil
}
