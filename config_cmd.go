package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# engine: cloud, local or mock
engine: "cloud"
# highlight the sentence being spoken
highlighting_enabled: true
# one highlight per sentence; false highlights the whole selection
sentence_mode: true
# class of the wrapper elements written into the document
highlight_class: "readaloud-highlight"
# speaking rate (0.1 to 3.0)
speech_rate: 1.0
# voice name, e.g. en-US-Wavenet-D, or a local voice with engine: local
voice: "en-US-Wavenet-D"
# speak with the local engine when remote synthesis fails
fallback_to_local: true

# remote synthesis
cloud:
  # api_key: "your-api-key-here"
  endpoint: "https://texttospeech.googleapis.com/v1beta1"
  # language_code: "en-US"
  pitch: 0.0
  volume_gain_db: 0.0
  # MP3 or LINEAR16
  encoding: "MP3"
  sample_rate_hertz: 24000
  timeout: "15s"
  requests_per_minute: 60
  # characters per month, 0 disables the check
  monthly_quota: 1000000
  # ledger_path: "~/.local/share/readaloud/usage.yml"

# local speech (say, espeak-ng or espeak)
local:
  # command: "espeak-ng"
  pitch: 1.0
  volume: 1.0

# synthesized audio cache
cache:
  enabled: true
  # dir: "~/.cache/readaloud"
  memory_mb: 32
  disk_mb: 256
  ttl: "168h"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/readaloud.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Readaloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
