package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/store"
)

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Fetch the group directory from GroupMe and cache it",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			groups, err := c.Groups(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.dir.Save(groups); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d groups in %s\n", len(groups), a.cfg.Cache.DirectoryFile)
			return nil
		}),
	}
}

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the cached group names",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			names, err := a.dir.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	}
}

func newFetchCmd() *cobra.Command {
	var all, reload, full bool
	cmd := &cobra.Command{
		Use:   "fetch [group]",
		Short: "Download and cache a group's messages",
		Long: `Fetch caches the messages of one group, or of every group with --all.
An uncached group is downloaded in full. With --reload only messages newer
than the cache are fetched; --full re-downloads the whole history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("give a group name or --all")
			}
			syncer := a.syncer()
			ctx := cmd.Context()
			if all {
				msgs, err := syncer.SyncAll(ctx, reload || full)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cached %d messages across all groups\n", len(msgs))
				return nil
			}
			id, err := a.dir.Lookup(args[0])
			if err != nil {
				return err
			}
			if id == store.AllGroups {
				return fmt.Errorf("use --all to fetch every group")
			}
			fetch := syncer.Sync
			if full {
				fetch = func(ctx context.Context, id string, _ bool) ([]groupme.Message, error) {
					return syncer.Refresh(ctx, id)
				}
			}
			msgs, err := fetch(ctx, id, reload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d messages for %s\n", len(msgs), args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "fetch every group in the directory")
	cmd.Flags().BoolVar(&reload, "reload", false, "fetch messages newer than the cache")
	cmd.Flags().BoolVar(&full, "full", false, "re-download the full history")
	return cmd
}
