// Package local speaks through the platform speech command: say on macOS,
// espeak-ng or espeak elsewhere. It is the fallback when remote synthesis
// is unavailable and has no timing information.
package local

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// Words per minute at rate 1.0 for both say and espeak.
const baseWPM = 175

// candidates are tried in order when no command is configured.
var candidates = []string{"say", "espeak-ng", "espeak"}

// Engine implements tts.LocalEngine with one subprocess per utterance.
type Engine struct {
	command string
	flavor  flavor
	cfg     tts.LocalConfig
	logger  *log.Logger

	mu      sync.Mutex
	current *utterance

	voicesOnce sync.Once
	voices     []tts.Voice
}

type utterance struct {
	cmd     *exec.Cmd
	stopped bool
}

type flavor int

const (
	flavorEspeak flavor = iota
	flavorSay
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger   *log.Logger
	lookPath func(string) (string, error)
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(f func(string) (string, error)) Option {
	return func(o *engineOptions) {
		o.lookPath = f
	}
}

// New locates the speech command. It fails with tts.ErrEngineNotFound when
// none is installed.
func New(cfg tts.LocalConfig, opts ...Option) (*Engine, error) {
	o := engineOptions{logger: log.Default(), lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(&o)
	}

	names := candidates
	if cfg.Command != "" {
		names = []string{cfg.Command}
	}

	for _, name := range names {
		path, err := o.lookPath(name)
		if err != nil {
			continue
		}
		e := &Engine{
			command: path,
			flavor:  flavorOf(path),
			cfg:     cfg,
			logger:  o.logger,
		}
		e.logger.Debug("local speech engine", "command", path)
		return e, nil
	}
	return nil, fmt.Errorf("%w: tried %s", tts.ErrEngineNotFound, strings.Join(names, ", "))
}

func flavorOf(path string) flavor {
	if strings.TrimSuffix(filepath.Base(path), ".exe") == "say" {
		return flavorSay
	}
	return flavorEspeak
}

// Command returns the resolved speech command.
func (e *Engine) Command() string {
	return e.command
}

// Speak starts speaking text. A running utterance is interrupted first.
func (e *Engine) Speak(ctx context.Context, text string, opts tts.SpeakOptions, handler func(tts.EngineEvent)) error {
	if strings.TrimSpace(text) == "" {
		return tts.ErrSelectionEmpty
	}
	if handler == nil {
		handler = func(tts.EngineEvent) {}
	}
	if opts.Pitch == 0 {
		opts.Pitch = e.cfg.Pitch
	}
	if opts.Volume == 0 {
		opts.Volume = e.cfg.Volume
	}

	_ = e.Stop()

	cmd := exec.Command(e.command, buildArgs(e.flavor, text, opts)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting %s: %w", filepath.Base(e.command), err)
	}
	u := &utterance{cmd: cmd}

	e.mu.Lock()
	e.current = u
	e.mu.Unlock()

	handler(tts.EngineEvent{Type: tts.EventStart})

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	go func() {
		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			e.release(u)
			handler(tts.EngineEvent{Type: tts.EventCancelled, Err: ctx.Err()})
			return
		}

		stopped := e.release(u)
		switch {
		case stopped:
			handler(tts.EngineEvent{Type: tts.EventInterrupted})
		case err != nil:
			handler(tts.EngineEvent{Type: tts.EventError, Err: err})
		default:
			handler(tts.EngineEvent{Type: tts.EventEnd})
		}
	}()
	return nil
}

// release forgets u and reports whether it was stopped.
func (e *Engine) release(u *utterance) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == u {
		e.current = nil
	}
	return u.stopped
}

// Stop kills the running utterance.
func (e *Engine) Stop() error {
	e.mu.Lock()
	u := e.current
	e.current = nil
	if u != nil {
		u.stopped = true
	}
	e.mu.Unlock()

	if u == nil || u.cmd.Process == nil {
		return nil
	}
	// A suspended process must be continued to receive the kill.
	_ = resumeProcess(u.cmd.Process.Pid)
	if err := u.cmd.Process.Kill(); err != nil && !errors.Is(err, errProcessDone) {
		return err
	}
	return nil
}

// Pause suspends the running utterance.
func (e *Engine) Pause() error {
	pid, ok := e.pid()
	if !ok {
		return nil
	}
	return suspendProcess(pid)
}

// Resume continues a suspended utterance.
func (e *Engine) Resume() error {
	pid, ok := e.pid()
	if !ok {
		return nil
	}
	return resumeProcess(pid)
}

func (e *Engine) pid() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.cmd.Process == nil {
		return 0, false
	}
	return e.current.cmd.Process.Pid, true
}

// Voices lists the installed voices. The list is read once.
func (e *Engine) Voices() []tts.Voice {
	e.voicesOnce.Do(func() {
		var args []string
		if e.flavor == flavorSay {
			args = []string{"-v", "?"}
		} else {
			args = []string{"--voices"}
		}
		out, err := exec.Command(e.command, args...).Output()
		if err != nil {
			e.logger.Warn("could not list local voices", "error", err)
			return
		}
		e.voices = parseVoices(e.flavor, string(out))
	})
	return e.voices
}

func buildArgs(f flavor, text string, opts tts.SpeakOptions) []string {
	rate := opts.Rate
	if rate <= 0 {
		rate = 1
	}
	wpm := strconv.Itoa(int(baseWPM * rate))

	var args []string
	switch f {
	case flavorSay:
		args = []string{"-r", wpm}
		if opts.VoiceName != "" {
			args = append(args, "-v", opts.VoiceName)
		}
		args = append(args, "--", text)
	default:
		args = []string{"-s", wpm}
		if opts.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(clamp(int(50*opts.Pitch), 0, 99)))
		}
		if opts.Volume > 0 {
			args = append(args, "-a", strconv.Itoa(clamp(int(100*opts.Volume), 0, 200)))
		}
		if opts.VoiceName != "" {
			args = append(args, "-v", opts.VoiceName)
		}
		args = append(args, "--", text)
	}
	return args
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseVoices reads `say -v ?` or `espeak --voices` output.
func parseVoices(f flavor, out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	first := true
	for sc.Scan() {
		line := sc.Text()
		switch f {
		case flavorSay:
			// "Alex                en_US    # Most people recognize me by my voice."
			head, _, _ := strings.Cut(line, "#")
			fields := strings.Fields(head)
			if len(fields) < 2 {
				continue
			}
			lang := fields[len(fields)-1]
			name := strings.Join(fields[:len(fields)-1], " ")
			voices = append(voices, tts.Voice{
				Name:     name,
				Language: strings.ReplaceAll(lang, "_", "-"),
			})
		default:
			// " 5  af              --/M      Afrikaans          gmw/af"
			if first {
				first = false
				if strings.HasPrefix(strings.TrimSpace(line), "Pty") {
					continue
				}
			}
			fields := strings.Fields(line)
			if len(fields) < 4 {
				continue
			}
			gender := ""
			if _, g, ok := strings.Cut(fields[2], "/"); ok {
				switch g {
				case "M":
					gender = "male"
				case "F":
					gender = "female"
				}
			}
			voices = append(voices, tts.Voice{
				Name:     fields[3],
				Language: fields[1],
				Gender:   gender,
			})
		}
	}
	return voices
}
