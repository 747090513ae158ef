package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/screens"
)

var (
	listPage    int
	listFilters []string
)

var listCmd = &cobra.Command{
	Use:   "list <screen>",
	Short: "Fetch one page of a list screen and print it as a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := screens.LoadDefinitions(cfg.ScreensFile)
		if err != nil {
			return err
		}
		client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
		catalog := screens.NewCatalog(defs, client, nil, nil)
		return runList(cmd.Context(), cmd.OutOrStdout(), catalog, args[0], listPage, listFilters)
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "page to fetch")
	listCmd.Flags().StringArrayVar(&listFilters, "filter", nil, "filter as key=value, repeatable")
}

func runList(ctx context.Context, w io.Writer, catalog *screens.Catalog, name string, page int, filters []string) error {
	def, err := catalog.Definitions().Lookup(name)
	if err != nil {
		return fmt.Errorf("%w (disponíveis: %s)", err, strings.Join(catalog.Definitions().Names(), ", "))
	}
	form, err := parsePairs(filters)
	if err != nil {
		return err
	}
	for key := range form {
		if _, ok := def.Filter(key); !ok {
			return fmt.Errorf("filtro %q não existe em %s (disponíveis: %s)", key, def.Name, strings.Join(filterKeys(def), ", "))
		}
	}
	values, err := screens.ParseInput(def, form)
	if err != nil {
		return err
	}

	driver, err := catalog.Open(def.Name)
	if err != nil {
		return err
	}
	defer driver.Dispose()
	for key, value := range values {
		driver.SetFilter(key, value)
	}
	view, err := driver.Load(ctx, page)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", colorBold.Sprint(def.Title), colorFaint.Sprintf("(página %d)", view.Page))
	return printTable(w, view)
}

// parsePairs reads repeated key=value flags into form values.
func parsePairs(pairs []string) (url.Values, error) {
	form := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		form.Add(key, value)
	}
	return form, nil
}

func filterKeys(def screens.Definition) []string {
	keys := make([]string, 0, len(def.Filters))
	for _, f := range def.Filters {
		keys = append(keys, f.Key)
	}
	return keys
}
