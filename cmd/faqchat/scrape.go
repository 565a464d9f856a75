package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/faq"
)

func newScrapeCmd(opts *options) *cobra.Command {
	var (
		output  string
		pages   []string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Turn site pages into FAQ entries",
		Long: `Fetch every page listed under scrape.pages (and any --page flag),
extract its readable text and add one entry per page to the FAQ file.
Pages that cannot be fetched, or carry too little text, are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			targets := append([]faq.Page(nil), cfg.Scrape.Pages...)
			for _, p := range pages {
				page, err := parsePage(p)
				if err != nil {
					return err
				}
				targets = append(targets, page)
			}
			if len(targets) == 0 {
				return fmt.Errorf("no pages to scrape: set scrape.pages or pass --page name=url")
			}

			if output == "" {
				output = cfg.FAQ.Path
			}
			store := faq.NewStore(output, faq.Options{})
			if !replace {
				if err := store.Reload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			logger, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			scraper := faq.NewScraper(&http.Client{Timeout: cfg.Scrape.Timeout}, logger)
			entries, err := scraper.Scrape(cmd.Context(), targets)
			if err != nil {
				return err
			}

			store.Append(entries...)
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d pages to %s (%d entries)\n", len(entries), len(targets), output, store.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "FAQ file to write (default: faq.path)")
	cmd.Flags().StringArrayVar(&pages, "page", nil, "Extra page to scrape, as name=url (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the FAQ file instead of appending to it")
	return cmd
}

// parsePage reads a name=url flag value.
func parsePage(s string) (faq.Page, error) {
	name, url, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
		return faq.Page{}, fmt.Errorf("invalid page %q: want name=url", s)
	}
	return faq.Page{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)}, nil
}
