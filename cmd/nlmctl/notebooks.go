package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
)

func newAccountsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List signed-in Google accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := c.app.NLM.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), accounts, func(w io.Writer) {
				for _, a := range accounts {
					mark := " "
					if a.AuthUser == c.app.NLM.AuthUser() {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %d %s %s\n", mark, a.AuthUser, a.Email, a.Name)
				}
			})
		},
	}
}

func newNotebooksCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "notebooks",
		Aliases: []string{"ls"},
		Short:   "List notebooks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nbs, err := c.app.NLM.ListNotebooks(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), nbs, func(w io.Writer) {
				for _, nb := range nbs {
					fmt.Fprintf(w, "%s  %3d  %s %s\n", nb.ID, nb.SourceCount, nb.Emoji, nb.Title)
				}
			})
		},
	}
}

func newCreateCmd(c *cli) *cobra.Command {
	var emoji string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an empty notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := c.app.NLM.CreateNotebook(cmd.Context(), args[0], emoji)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), nb, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", nb.ID, c.app.NLM.NotebookURL(nb.ID))
			})
		},
	}
	cmd.Flags().StringVar(&emoji, "emoji", "", "emoji shown next to the title")
	return cmd
}

func newSourcesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sources <notebook-id>",
		Short: "List the sources of a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := c.app.NLM.GetNotebook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), nb, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%d sources)\n", nb.Title, len(nb.Sources))
				for _, s := range nb.Sources {
					drive := ""
					if s.CanSync {
						drive = " [drive]"
					}
					fmt.Fprintf(w, "%s  %-14s %s%s\n", s.ID, s.Type, s.Title, drive)
				}
			})
		},
	}
}

// readURLs merges args with non-empty lines of file ("-" is stdin).
func readURLs(args []string, file string, stdin io.Reader) ([]string, error) {
	urls := append([]string(nil), args...)
	if file == "" {
		return urls, nil
	}
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}

func (c *cli) record(cmd *cobra.Command, e history.Entry, err error) {
	if c.app.Store == nil {
		return
	}
	if err != nil {
		detail := err.Error()
		if e.Detail != "" {
			detail = e.Detail + ": " + detail
		}
		e.Action, e.Detail = history.ActionError, detail
	}
	if herr := c.app.Store.AddHistory(context.WithoutCancel(cmd.Context()), e); herr != nil {
		slog.Warn("history: write failed", slog.String("action", e.Action), slog.Any("error", herr))
	}
}

func newAddCmd(c *cli) *cobra.Command {
	var (
		file   string
		asText bool
	)
	cmd := &cobra.Command{
		Use:   "add <notebook-id> [url...]",
		Short: "Add web pages and YouTube videos as sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb := args[0]
			urls, err := readURLs(args[1:], file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return errors.New("no urls given")
			}
			out := cmd.OutOrStdout()
			if asText {
				for _, u := range urls {
					title, err := c.app.NLM.AddPageAsText(cmd.Context(), nb, u)
					c.record(cmd, history.Entry{Action: history.ActionAddText, URL: u, Title: title, NotebookID: nb}, err)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", u, err)
						continue
					}
					fmt.Fprintf(out, "ok   %s (%s)\n", u, title)
				}
				return nil
			}
			res, err := c.app.NLM.AddSources(cmd.Context(), nb, urls)
			for _, u := range urls {
				c.record(cmd, history.Entry{Action: history.ActionAddSource, URL: u, NotebookID: nb}, err)
			}
			if err != nil {
				return err
			}
			return c.emit(out, res, func(w io.Writer) {
				fmt.Fprintf(w, "added %d page(s), %d video(s)\n", res.Regular, res.Video)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read URLs from file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&asText, "as-text", false, "fetch each page and add its readable text")
	return cmd
}

func newTextCmd(c *cli) *cobra.Command {
	var title, file string
	cmd := &cobra.Command{
		Use:   "text <notebook-id>",
		Short: "Add text from a file or stdin as a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
				if title == "" {
					title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
				}
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(string(data)) == "" {
				return errors.New("text is empty")
			}
			err = c.app.NLM.AddTextSource(cmd.Context(), args[0], string(data), title)
			c.record(cmd, history.Entry{Action: history.ActionAddText, Title: title, NotebookID: args[0]}, err)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d words\n", len(strings.Fields(string(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "source title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from file (default stdin)")
	return cmd
}

func newPDFCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pdf <notebook-id> <file.pdf>",
		Short: "Upload a PDF as a document source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			name := engine.SafeFilename(strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1])))
			res, err := c.app.NLM.AddPDFSource(cmd.Context(), args[0], name, data)
			c.record(cmd, history.Entry{Action: history.ActionAddPDF, Title: name, NotebookID: args[0]}, err)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", res.SourceID, res.Filename)
			})
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <notebook-id> <source-id>...",
		Short: "Delete sources",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.app.NLM.DeleteSources(cmd.Context(), args[0], args[1:])
			c.record(cmd, history.Entry{
				Action:     history.ActionDeleteSources,
				NotebookID: args[0],
				Detail:     fmt.Sprintf("deleted %d of %d sources", n, len(args)-1),
			}, err)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d\n", n, len(args)-1)
			return err
		},
	}
}

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <notebook-id>",
		Short: "Re-import stale Google Drive sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := c.app.NLM.SyncDriveSources(cmd.Context(), args[0])
			c.record(cmd, history.Entry{
				Action:     history.ActionSyncDrive,
				NotebookID: args[0],
				Detail:     fmt.Sprintf("synced %d of %d", rep.Synced, rep.Total),
			}, err)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), rep, func(w io.Writer) {
				fmt.Fprintf(w, "drive sources: %d, fresh: %d, synced: %d, skipped: %d, errors: %d\n",
					rep.Total, rep.Fresh, rep.Synced, rep.Skipped, rep.Errors)
			})
		},
	}
}
