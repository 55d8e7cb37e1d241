package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

type commentsFlags struct {
	notebook string
	mode     string
	limit    int
	replies  bool
	interval time.Duration
}

// request builds the crawl request; replies is only forced when the flag was set.
func (f commentsFlags) request(video string, repliesSet bool) crawl.Request {
	req := crawl.Request{
		Video:      video,
		NotebookID: f.notebook,
		Mode:       youtube.ParseMode(f.mode),
		Limit:      f.limit,
	}
	if repliesSet {
		r := f.replies
		req.IncludeReplies = &r
	}
	return req
}

func newCommentsCmd(c *cli) *cobra.Command {
	var f commentsFlags
	cmd := &cobra.Command{
		Use:   "comments <video-url-or-id>",
		Short: "Import the comments of a YouTube video into a notebook",
		Long: `Crawls the comment threads of a video, formats them as markdown documents
that fit the notebook source size limit and adds each as a text source.
Interrupt (Ctrl-C) cancels the crawl; parts already sent stay in the notebook.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := f.request(args[0], cmd.Flags().Changed("replies"))
			if _, err := c.app.Crawls.Start(cmd.Context(), req); err != nil {
				return err
			}
			st := follow(cmd.Context(), c.app.Crawls, f.interval, cmd.ErrOrStderr())
			if err := c.emit(cmd.OutOrStdout(), st, func(w io.Writer) { printOutcome(w, st) }); err != nil {
				return err
			}
			if st.Error != nil {
				return &engine.Error{Code: st.Error.Code, Msg: st.Error.Message}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.notebook, "notebook", "n", "", "target notebook ID")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "top", "comment order: top or newest")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "max top-level comments, 0 = all")
	cmd.Flags().BoolVarP(&f.replies, "replies", "r", false, "fetch replies (default: on for top, off for newest)")
	cmd.Flags().DurationVar(&f.interval, "interval", time.Second, "progress poll interval")
	_ = cmd.MarkFlagRequired("notebook")
	return cmd
}

// follow polls o until the run ends, printing progress changes to w.
// Cancelling ctx cancels the run and waits for it to stop.
func follow(ctx context.Context, o *crawl.Orchestrator, interval time.Duration, w io.Writer) crawl.State {
	t := time.NewTicker(interval)
	defer t.Stop()
	var last crawl.Progress
	for {
		st := o.Status()
		if st.Progress != last {
			last = st.Progress
			if last.Total > 0 {
				fmt.Fprintf(w, "%-18s %d / ~%d\n", last.Phase, last.Fetched, last.Total)
			} else {
				fmt.Fprintf(w, "%-18s %d\n", last.Phase, last.Fetched)
			}
		}
		if !st.Active {
			return st
		}
		select {
		case <-ctx.Done():
			o.Cancel()
			fmt.Fprintln(w, "cancelling...")
			st, _ = o.Wait(context.Background())
			return st
		case <-t.C:
		}
	}
}

func printOutcome(w io.Writer, st crawl.State) {
	switch {
	case st.Result != nil:
		r := st.Result
		fmt.Fprintf(w, "%s: %d of %d comments in %d part(s)\n", r.VideoTitle, r.CommentCount, r.TotalComments, r.PartCount)
	case st.Error != nil:
		fmt.Fprintf(w, "failed: %s\n", st.Error.Code)
	default:
		fmt.Fprintf(w, "%s\n", st.Progress.Phase)
	}
}
