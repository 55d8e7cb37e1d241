package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
)

var errNoStore = errors.New("history database unavailable (see HISTORY_DB)")

func newQueueCmd(c *cli) *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Manage the pending URL queue",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if c.app.Store == nil {
				return errNoStore
			}
			return nil
		},
	}

	var file string
	add := &cobra.Command{
		Use:   "add [url...]",
		Short: "Queue URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := readURLs(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			items := make([]history.QueueItem, 0, len(urls))
			for _, u := range urls {
				items = append(items, history.QueueItem{URL: u})
			}
			n, err := c.app.Store.Enqueue(cmd.Context(), items...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d queued\n", n)
			return nil
		},
	}
	add.Flags().StringVarP(&file, "file", "f", "", "read URLs from file, one per line (- for stdin)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List queued URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := c.app.Store.Queue(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), items, func(w io.Writer) {
				for _, it := range items {
					fmt.Fprintf(w, "%4d  %s  %s\n", it.ID, it.AddedAt, it.URL)
				}
			})
		},
	}

	var delay time.Duration
	process := &cobra.Command{
		Use:   "process <notebook-id>",
		Short: "Add every queued URL to a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("delay") {
				delay = engine.Cfg.QueueAddDelay
			}
			res, err := c.app.Store.ProcessQueue(cmd.Context(), args[0], c.app.NLM, delay)
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, errors %d\n", res.Processed, res.Errors)
			return err
		},
	}
	process.Flags().DurationVar(&delay, "delay", 0, "pause between sources (default QUEUE_ADD_DELAY)")

	wipe := &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Store.ClearQueue(cmd.Context())
		},
	}

	queue.AddCommand(add, list, process, wipe)
	return queue
}

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	var wipe bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Store == nil {
				return errNoStore
			}
			if wipe {
				return c.app.Store.ClearHistory(cmd.Context())
			}
			entries, err := c.app.Store.ListHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
				for _, e := range entries {
					target := e.URL
					if target == "" {
						target = e.Title
					}
					fmt.Fprintf(w, "%s  %-14s %s %s\n", e.CreatedAt, e.Action, target, e.Detail)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "max entries")
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the whole history")
	return cmd
}
