package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dashboard-baker/baker/internal/dashboard"
	"github.com/dashboard-baker/baker/internal/platform/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the dashboard payload cache",
}

var cacheBumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Invalidate every cached dashboard payload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := cache.New(cmd.Context(), cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		return runCacheBump(cmd.Context(), cmd.OutOrStdout(), dashboard.NewCache(client, 0, nil))
	},
}

func init() {
	cacheCmd.AddCommand(cacheBumpCmd)
}

func runCacheBump(ctx context.Context, w io.Writer, c *dashboard.Cache) error {
	version, err := c.Bump(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s versão %d\n", colorGreen.Sprint("cache invalidado:"), version)
	return err
}
