package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/faq"
)

func newFAQCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Inspect the FAQ file",
	}
	cmd.AddCommand(newFAQListCmd(opts), newFAQSearchCmd(opts), newFAQAskCmd(opts))
	return cmd
}

func openStore(opts *options) (*faq.Store, *config.Config, error) {
	cfg, err := opts.loadConfig(true)
	if err != nil {
		return nil, nil, err
	}
	store, err := faq.Load(cfg.FAQ.Path, faq.Options{
		Threshold:        cfg.FAQ.Threshold,
		PartialThreshold: cfg.FAQ.PartialThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newFAQListCmd(opts *options) *cobra.Command {
	var answers bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the FAQ questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(opts)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), store.Entries(), answers)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&answers, "answers", "a", false, "Print answers too")
	return cmd
}

func newFAQSearchCmd(opts *options) *cobra.Command {
	var answers bool
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Fuzzy-search the FAQ questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(opts)
			if err != nil {
				return err
			}
			found := store.Search(args[0])
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No questions match.")
				return nil
			}
			printEntries(cmd.OutOrStdout(), found, answers)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&answers, "answers", "a", false, "Print answers too")
	return cmd
}

// newFAQAskCmd shows which entry /chat would hand to the model as context.
func newFAQAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Show the FAQ entry used as context for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore(opts)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			match, ok := store.Best(question)
			kind := "similar"
			if !ok && cfg.FAQ.Hybrid {
				if matches := store.Matches(question); len(matches) > 0 {
					match, ok, kind = matches[0], true, "partial"
				}
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No FAQ entry is close enough.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s match (score %d)\nQ: %s\nA: %s\n", kind, match.Score, match.Question, match.Answer)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []faq.Entry, answers bool) {
	for i, e := range entries {
		fmt.Fprintf(w, "%3d. %s\n", i+1, e.Question)
		if answers {
			fmt.Fprintf(w, "     %s\n", truncate(e.Answer, 200))
		}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
