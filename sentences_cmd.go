package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgnsrekt/readaloud/tts/ssml"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

var showMarkup bool

var sentencesCmd = &cobra.Command{
	Use:     "sentences [SOURCE]",
	Short:   "Print the sentences a selection is split into",
	Long:    paragraph(fmt.Sprintf("\n%s the sentences of a selection in the order they are spoken, or the markup sent for synthesis.", keyword("Print"))),
	Example: paragraph("readaloud sentences page.html\nreadaloud sentences --from intro --markup page.html"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sel, err := loadSelection(cmd.Context(), args)
		if err != nil {
			return err
		}
		sentences := newDetector().Detect(sel)
		markup, _ := ssml.Build(sentences)

		if showMarkup {
			_, err := fmt.Fprintln(os.Stdout, markup)
			return err
		}

		for _, s := range sentences {
			label := fmt.Sprintf("%3d ", s.Index+1)
			text := strings.Join(strings.Fields(s.Text), " ")
			if w := int(width) - len(label); w > 0 { //nolint:gosec
				text = wordwrap.String(text, w)
			}
			body := indent.String(text, uint(len(label))) //nolint:gosec
			fmt.Fprintln(os.Stdout, keyword(label)+strings.TrimLeft(body, " "))
		}
		fmt.Fprintln(os.Stdout, faint(fmt.Sprintf("%d sentences, %d billable characters", len(sentences), ssml.Characters(markup))))
		return nil
	},
}

func init() {
	sentencesCmd.Flags().BoolVar(&showMarkup, "markup", false, "print the SSML request instead")
}
