package nlmserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/notebooklm"
)

type AccountsResult struct {
	Current  int                  `json:"current_authuser"`
	Accounts []notebooklm.Account `json:"accounts"`
}

type NotebooksResult struct {
	Notebooks []notebooklm.Notebook `json:"notebooks"`
}

type NotebookResult struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	URL     string              `json:"url"`
	Sources []notebooklm.Source `json:"sources,omitempty"`
}

func registerListAccounts(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_list_accounts",
		Description: "List the Google accounts signed in with the configured cookies and the account index currently used for NotebookLM calls.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *AccountsResult, error) {
		accounts, err := d.NLM.ListAccounts(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, &AccountsResult{Current: d.NLM.AuthUser(), Accounts: accounts}, nil
	})
}

func registerSetAccount(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_set_account",
		Description: "Switch the Google account index (authuser) used for subsequent NotebookLM calls.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input engine.AccountSelectInput) (*mcp.CallToolResult, *AccountsResult, error) {
		if input.AuthUser < 0 {
			return nil, nil, errors.New("authuser must be >= 0")
		}
		d.NLM.SetAccount(input.AuthUser)
		return nil, &AccountsResult{Current: d.NLM.AuthUser()}, nil
	})
}

func registerListNotebooks(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_list_notebooks",
		Description: "List NotebookLM notebooks of the current account with their source counts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *NotebooksResult, error) {
		nbs, err := d.NLM.ListNotebooks(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, &NotebooksResult{Notebooks: nbs}, nil
	})
}

func registerCreateNotebook(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_create_notebook",
		Description: "Create an empty NotebookLM notebook. Returns its ID and browser URL.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.NotebookCreateInput) (*mcp.CallToolResult, *NotebookResult, error) {
		if strings.TrimSpace(input.Title) == "" {
			return nil, nil, errors.New("title is required")
		}
		nb, err := d.NLM.CreateNotebook(ctx, input.Title, input.Emoji)
		if err != nil {
			return nil, nil, err
		}
		return nil, &NotebookResult{ID: nb.ID, Title: nb.Title, URL: d.NLM.NotebookURL(nb.ID)}, nil
	})
}

func registerGetNotebook(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_get_notebook",
		Description: "Get a notebook with its sources: id, title, type (web_page, youtube, pdf, google_docs, pasted_text, ...), URL and whether it can be re-synced from Drive.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.NotebookInput) (*mcp.CallToolResult, *NotebookResult, error) {
		if input.NotebookID == "" {
			return nil, nil, errors.New("notebook_id is required")
		}
		nb, err := d.NLM.GetNotebook(ctx, input.NotebookID)
		if err != nil {
			return nil, nil, err
		}
		return nil, &NotebookResult{ID: nb.ID, Title: nb.Title, URL: d.NLM.NotebookURL(nb.ID), Sources: nb.Sources}, nil
	})
}
