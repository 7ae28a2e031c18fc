// Package main provides the entry point for the readaloud CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/tts"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	debug         bool
	engineName    string
	voiceName     string
	speechRate    float64
	fromID        string
	toID          string
	phrase        string
	abbreviations bool
	tui           bool
	plain         bool
	width         uint
	mouse         bool
	noHighlight   bool
	wholeMode     bool

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE]",
		Short: "Read documents aloud, highlighting each sentence as it is spoken",
		Long: paragraph(
			fmt.Sprintf("\nRead HTML and Markdown documents %s, highlighting each sentence as it is spoken.", keyword("aloud")),
		),
		Example: paragraph("readaloud README.md\nreadaloud --from intro --to summary page.html\nreadaloud --text \"It was a dark\" https://example.com/story.html\npbpaste | readaloud -"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if tui && plain {
		return errors.New("cannot use both tui and plain")
	}
	if fromID == "" && toID != "" {
		return errors.New("--to needs --from")
	}
	if phrase != "" && fromID != "" {
		return errors.New("cannot use both --text and --from")
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// loadConfig reads the configuration and applies the command line
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (tts.Config, error) {
	if err := tts.LoadDotEnv(""); err != nil {
		log.Warn("could not load .env", "error", err)
	}

	cfg, err := tts.LoadConfig(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *tts.Config) error {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = engineName
	}
	if flags.Changed("voice") {
		cfg.Voice = voiceName
	}
	if flags.Changed("rate") {
		cfg.SpeechRate = speechRate
	}
	if noHighlight {
		cfg.HighlightingEnabled = false
	}
	if wholeMode {
		cfg.SentenceMode = false
	}

	scope := gap.NewScope(gap.User, "readaloud")
	if cfg.Cache.Dir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			return fmt.Errorf("unable to find cache directory: %w", err)
		}
		cfg.Cache.Dir = filepath.Join(dir, "audio")
	}
	if cfg.Cloud.LedgerPath == "" {
		path, err := scope.DataPath("usage.yml")
		if err != nil {
			return fmt.Errorf("unable to find data directory: %w", err)
		}
		cfg.Cloud.LedgerPath = path
	}
	return nil
}

// loadSelection loads the document named by the arguments and selects the
// part to read.
func loadSelection(ctx context.Context, args []string) (*document.Document, *dom.Range, error) {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	} else if yes, err := stdinIsPipe(); err != nil {
		return nil, nil, err
	} else if yes {
		arg = "-"
	}

	doc, err := document.Load(ctx, arg)
	if err != nil {
		return nil, nil, err
	}

	var sel *dom.Range
	if phrase != "" {
		sel, err = doc.SelectText(phrase)
	} else {
		sel, err = doc.Select(fromID, toID)
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, sel, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	doc, sel, err := loadSelection(ctx, args)
	if err != nil {
		return err
	}

	fromStdin := len(args) == 0 || args[0] == "-"
	useTUI := tui || (!plain && !fromStdin && term.IsTerminal(int(os.Stdout.Fd())))
	if useTUI {
		return runTUI(cfg, doc, sel)
	}
	return runPlain(ctx, cfg, sel, os.Stdout)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	pf.BoolVar(&debug, "debug", false, "write debug output to the log file")
	pf.StringVarP(&engineName, "engine", "e", "", "speech engine: cloud, local or mock")
	pf.StringVar(&voiceName, "voice", "", "voice name")
	pf.Float64VarP(&speechRate, "rate", "r", 1.0, "speaking rate (0.1 to 3.0)")
	pf.StringVar(&fromID, "from", "", "id of the first element to read")
	pf.StringVar(&toID, "to", "", "id of the last element to read")
	pf.StringVar(&phrase, "text", "", "read only the first occurrence of this text")
	pf.BoolVar(&abbreviations, "abbreviations", false, "do not end sentences after common abbreviations")
	pf.UintVarP(&width, "width", "w", 0, "word-wrap at width")

	rootCmd.Flags().BoolVarP(&tui, "tui", "t", false, "always use the interactive reader")
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "print sentences as they are spoken")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().BoolVar(&noHighlight, "no-highlight", false, "speak without highlighting")
	rootCmd.Flags().BoolVar(&wholeMode, "whole", false, "highlight the whole selection instead of each sentence")

	// Config bindings
	_ = viper.BindPFlag("width", pf.Lookup("width"))
	_ = viper.BindPFlag("debug", pf.Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("width", 0)
	viper.SetDefault("debug", false)
	tts.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, sentencesCmd, voicesCmd, quotaCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readaloud")}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readaloud.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
