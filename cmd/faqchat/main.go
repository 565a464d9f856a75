// Command faqchat runs the FAQ reply service and the terminal chat widget.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/config"
)

// Version is set at build time.
var Version = "v0.1.0"

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "faqchat",
		Short: "FAQ-backed chat service and terminal widget",
		Long: `faqchat answers visitor questions from a FAQ file, optionally
rephrased by a language model, and ships a terminal chat widget that
talks to the service.

Examples:
  faqchat serve                       Run the reply service
  faqchat chat                        Open the chat widget
  faqchat scrape                      Turn the configured pages into FAQ entries
  faqchat faq search "opening hours"  Search the FAQ questions
  faqchat validate --probe            Check the config and reach the providers`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(opts.envFile)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "faqchat.yaml", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the configuration")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newScrapeCmd(opts),
		newFAQCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadEnv reads path into the environment. A missing file is not an error;
// variables already set win over the file.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadConfig reads the configuration file. When the file does not exist
// and lenient is set, the defaults are used instead.
func (o *options) loadConfig(lenient bool) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil && lenient && errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "faqchat %s\n", Version)
		},
	}
}
