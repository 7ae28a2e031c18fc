package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/cloud"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var voiceLanguage string

var voicesCmd = &cobra.Command{
	Use:     "voices [QUERY]",
	Short:   "List the available voices",
	Long:    paragraph(fmt.Sprintf("\n%s the voices of the configured engine and the local speaker. A query filters them by fuzzy name match.", keyword("List"))),
	Example: paragraph("readaloud voices\nreadaloud voices --language en-GB neural\nreadaloud voices --engine local"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		voices, err := listVoices(cmd.Context(), cfg, voiceLanguage)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			voices = filterVoices(voices, args[0])
		}
		printVoices(voices)
		return nil
	},
}

type voiceSource []tts.Voice

func (v voiceSource) String(i int) string { return v[i].Name + " " + v[i].Language }
func (v voiceSource) Len() int            { return len(v) }

// filterVoices returns the voices matching query, best match first.
func filterVoices(voices []tts.Voice, query string) []tts.Voice {
	matches := fuzzy.FindFrom(query, voiceSource(voices))
	out := make([]tts.Voice, len(matches))
	for i, m := range matches {
		out[i] = voices[m.Index]
	}
	return out
}

func printVoices(voices []tts.Voice) {
	nameWidth := 4
	for _, v := range voices {
		if w := runewidth.StringWidth(v.Name); w > nameWidth {
			nameWidth = w
		}
	}

	for _, v := range voices {
		name := runewidth.FillRight(v.Name, nameWidth)
		markers := ""
		if v.IsGoogle {
			if cloud.SupportsMarkers(v.Name) {
				markers = "sentence sync"
			} else {
				markers = "no sync"
			}
		}
		fields := []string{keyword(name), runewidth.FillRight(v.Language, 8), runewidth.FillRight(v.Gender, 7), runewidth.FillRight(v.Quality, 9), faint(markers)}
		fmt.Fprintln(os.Stdout, strings.TrimRight(strings.Join(fields, "  "), " "))
	}
	fmt.Fprintln(os.Stdout, faint(fmt.Sprintf("%d voices", len(voices))))
}

func init() {
	voicesCmd.Flags().StringVarP(&voiceLanguage, "language", "l", "", "only list voices for this language code")
}
