package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/spf13/cobra"
)

func TestFilterVoices(t *testing.T) {
	voices := []tts.Voice{
		{Name: "en-US-Standard-A", Language: "en-US"},
		{Name: "en-GB-Neural2-B", Language: "en-GB"},
		{Name: "de-DE-Wavenet-C", Language: "de-DE"},
	}

	got := filterVoices(voices, "gbneural")
	if len(got) != 1 || got[0].Name != "en-GB-Neural2-B" {
		t.Errorf("got %+v", got)
	}
	if got := filterVoices(voices, "zzz"); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestLinePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &linePrinter{w: &buf, width: 30}
	p.HighlightStarted(tts.HighlightEvent{Index: 1, Total: 3, Text: "Second   sentence\nhere."})
	p.HighlightStarted(tts.HighlightEvent{Index: -1, Mode: tts.ModeFullSelection, Text: "All of it."})

	out := buf.String()
	if !strings.Contains(out, "[2/3] Second sentence here.") {
		t.Errorf("sentence line missing:\n%s", out)
	}
	if !strings.Contains(out, "[all] All of it.") {
		t.Errorf("selection line missing:\n%s", out)
	}
}

func TestRunPlain_Mock(t *testing.T) {
	doc, err := document.FromHTML([]byte("<p>One. Two.</p>"), "test")
	if err != nil {
		t.Fatal(err)
	}
	cfg := tts.DefaultConfig()
	cfg.Engine = tts.EngineMock
	cfg.SpeechRate = 3

	var buf bytes.Buffer
	if err := runPlain(context.Background(), cfg, doc.All(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[1/2] One.") || !strings.Contains(out, "[2/2] Two.") {
		t.Errorf("got:\n%s", out)
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&engineName, "engine", "", "")
	cmd.Flags().StringVar(&voiceName, "voice", "", "")
	cmd.Flags().Float64Var(&speechRate, "rate", 1, "")
	if err := cmd.Flags().Parse([]string{"--engine", "local", "--rate", "1.5"}); err != nil {
		t.Fatal(err)
	}

	cfg := tts.DefaultConfig()
	cfg.Cache.Dir = "/tmp/cache"
	cfg.Cloud.LedgerPath = "/tmp/usage.yml"
	if err := applyFlags(cmd, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != tts.EngineLocal || cfg.SpeechRate != 1.5 || cfg.Voice != tts.DefaultConfig().Voice {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Cache.Dir != "/tmp/cache" || cfg.Cloud.LedgerPath != "/tmp/usage.yml" {
		t.Error("configured paths were replaced")
	}
}
