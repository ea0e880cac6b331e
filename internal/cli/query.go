package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"libbot/internal/models"
	"libbot/internal/service"
)

var bookCmd = &cobra.Command{
	Use:     "book <keyword+keyword>",
	Short:   "Find the first book whose name contains every keyword",
	Example: "  libbot book trading+101",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupQuery()
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		keywords := service.ParseKeywords(query)
		if len(keywords) == 0 {
			return fmt.Errorf("no keywords in %q", query)
		}

		entry, found, err := a.library.FindBook(cmd.Context(), keywords)
		if err != nil {
			return err
		}

		printBook(cmd.OutOrStdout(), query, entry, found)
		return nil
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series <name>",
	Short: "Show every series whose title contains name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupQuery()
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		result, err := a.library.FindSeries(cmd.Context(), query)
		if err != nil {
			return err
		}

		printSeriesResult(cmd.OutOrStdout(), query, result)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every series with its books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setupQuery()
		if err != nil {
			return err
		}

		index, err := a.library.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		printIndex(cmd.OutOrStdout(), index)
		return nil
	},
}

func setupQuery() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log)
}

func printBook(w io.Writer, query string, entry models.BookEntry, found bool) {
	if !found {
		fmt.Fprintf(w, "Ничего не найдено по запросу %q\n", query)
		return
	}
	fmt.Fprint(w, entry)
}

func printSeries(w io.Writer, s models.Series) {
	fmt.Fprintf(w, "%s\n", s.Title)
	for i, book := range s.Books {
		fmt.Fprintf(w, "  %d. %s\n", i+1, book)
	}
}

func printSeriesResult(w io.Writer, query string, result service.SeriesResult) {
	if !result.Found() {
		fmt.Fprintf(w, "Серия %q не найдена. Доступные серии:\n", query)
		for _, title := range result.Available {
			fmt.Fprintf(w, "  - %s\n", title)
		}
		return
	}

	for _, s := range result.Matches {
		printSeries(w, s)
	}
}

func printIndex(w io.Writer, index *models.SeriesIndex) {
	if index.Len() == 0 {
		fmt.Fprintln(w, "Список серий пуст")
		return
	}
	for _, s := range index.All() {
		printSeries(w, s)
	}
}
