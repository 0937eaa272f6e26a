package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect the remote option cache",
	}
	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached option list",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	}
	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Drop expired option lists",
		Args:  cobra.NoArgs,
		RunE:  runCachePrune,
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cachePruneCmd)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n := a.resolver.Cache().Len()
	a.resolver.Invalidate(ctx, nil)
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", a.resolver.Cache().Prune(ctx))
	return nil
}
