package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dgnsrekt/readaloud/tts/engines/cloud"
	"github.com/dgnsrekt/readaloud/tts/ssml"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	resetQuota bool
	estimate   string
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show remote synthesis usage for the current month",
	Long: paragraph(fmt.Sprintf("\n%s how many characters were sent for synthesis this month, what is left of the monthly quota and what it cost.",
		keyword("Show"))),
	Example: paragraph("readaloud quota\nreadaloud quota --estimate README.md\nreadaloud quota --reset"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		quota, err := cloud.NewQuota(cfg.Cloud.LedgerPath, cfg.Cloud.MonthlyQuota)
		if err != nil {
			return err
		}

		if resetQuota {
			if err := quota.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "Usage reset.")
			return nil
		}

		if estimate != "" {
			_, sel, err := loadSelection(cmd.Context(), []string{estimate})
			if err != nil {
				return err
			}
			markup, _ := ssml.Build(newDetector().Detect(sel))
			chars := ssml.Characters(markup)
			fmt.Fprintf(os.Stdout, "%s characters with %s (%s tier), about $%s\n",
				keyword(humanize.Comma(int64(chars))), cfg.Voice, cloud.TierOf(cfg.Voice),
				cloud.EstimateCost(cfg.Voice, chars).StringFixed(2))
			if r := quota.Remaining(); r >= 0 && chars > r {
				fmt.Fprintln(os.Stdout, faint("This is more than the remaining quota."))
			}
			return nil
		}

		u := quota.Usage()
		fmt.Fprintf(os.Stdout, "%s %s\n", faint("Period:    "), u.Period)
		fmt.Fprintf(os.Stdout, "%s %s in %s\n", faint("Used:      "),
			keyword(humanize.Comma(int64(u.Characters))+" characters"), humanize.Comma(int64(u.Requests))+" requests")
		if quota.Ceiling() > 0 {
			fmt.Fprintf(os.Stdout, "%s %s of %s\n", faint("Remaining: "),
				humanize.Comma(int64(quota.Remaining())), humanize.Comma(int64(quota.Ceiling())))
		} else {
			fmt.Fprintf(os.Stdout, "%s unlimited\n", faint("Remaining: "))
		}
		fmt.Fprintf(os.Stdout, "%s $%s with %s\n", faint("Cost:      "),
			cloud.EstimateCost(cfg.Voice, u.Characters).StringFixed(2), cfg.Voice)
		if !u.UpdatedAt.IsZero() {
			fmt.Fprintf(os.Stdout, "%s %s\n", faint("Updated:   "), humanize.RelTime(u.UpdatedAt, time.Now(), "ago", "from now"))
		}
		return nil
	},
}

func init() {
	quotaCmd.Flags().BoolVar(&resetQuota, "reset", false, "clear this month's usage")
	quotaCmd.Flags().StringVar(&estimate, "estimate", "", "estimate the characters and cost of reading SOURCE")
}
