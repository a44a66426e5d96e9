package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/version"
)

type rootFlags struct {
	configFile string
	envFile    string
	verbose    bool
	noVoice    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "itark",
		Short:         "Camera narration assistant",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `itark watches a camera and describes the scene aloud at a fixed interval.
Questions about the current view can be typed or, with a microphone, spoken.

Configuration is read from the environment and an optional .env file.
GEMINI_API_KEY is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.verbose {
				logger.SetVerbose(true)
			}
			return run(cmd.Context(), flags)
		},
	}
	cmd.SetVersionTemplate(version.GetVersionInfo() + "\n")

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "environment file to load (default .env when present)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&flags.noVoice, "no-voice", false, "disable microphone questions and cloud speech")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
