package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_nlm/internal/app"
)

// cli carries state shared by subcommands.
type cli struct {
	app      *app.App
	authUser int
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	c := &cli{authUser: -1}
	root := &cobra.Command{
		Use:   "nlmctl",
		Short: "Manage NotebookLM sources and import YouTube comments",
		Long: `nlmctl talks to NotebookLM with the signed-in session from NLM_COOKIES
(or NLM_COOKIES_FILE). It lists notebooks, adds URL, text and PDF sources,
deletes sources, re-syncs Drive sources and imports YouTube comment threads
as text sources.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			app.InitEngine()
			c.app = app.New()
			if c.authUser >= 0 {
				c.app.NLM.SetAccount(c.authUser)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.PersistentFlags().IntVarP(&c.authUser, "authuser", "u", -1, "Google account index (default from NLM_AUTHUSER)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		newAccountsCmd(c),
		newNotebooksCmd(c),
		newCreateCmd(c),
		newSourcesCmd(c),
		newAddCmd(c),
		newTextCmd(c),
		newPDFCmd(c),
		newDeleteCmd(c),
		newSyncCmd(c),
		newCommentsCmd(c),
		newQueueCmd(c),
		newHistoryCmd(c),
	)
	return root
}

// emit prints v as indented JSON when --json is set, otherwise runs text.
func (c *cli) emit(w io.Writer, v any, text func(io.Writer)) error {
	if !c.asJSON {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
