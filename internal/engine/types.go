package engine

// --- NotebookLM tool inputs ---

type AccountSelectInput struct {
	AuthUser int `json:"authuser" jsonschema:"Account index from nlm_list_accounts (0 = first signed-in account)"`
}

type NotebookCreateInput struct {
	Title string `json:"title" jsonschema:"Notebook title"`
	Emoji string `json:"emoji,omitempty" jsonschema:"Optional emoji shown next to the title"`
}

type NotebookInput struct {
	NotebookID string `json:"notebook_id" jsonschema:"Notebook ID (from nlm_list_notebooks)"`
}

type AddSourcesInput struct {
	NotebookID string   `json:"notebook_id" jsonschema:"Target notebook ID"`
	URLs       []string `json:"urls" jsonschema:"Web page or YouTube URLs. Video URLs are sent as video sources."`
	AsText     bool     `json:"as_text,omitempty" jsonschema:"Fetch each page and add its readable text instead of the URL"`
}

type AddTextInput struct {
	NotebookID string `json:"notebook_id" jsonschema:"Target notebook ID"`
	Title      string `json:"title,omitempty" jsonschema:"Source title (default: Pasted text)"`
	Text       string `json:"text" jsonschema:"Text content"`
}

type AddPageTextInput struct {
	NotebookID string `json:"notebook_id" jsonschema:"Target notebook ID"`
	URL        string `json:"url" jsonschema:"Page to fetch and convert to markdown"`
}

type AddPDFInput struct {
	NotebookID string `json:"notebook_id" jsonschema:"Target notebook ID"`
	Filename   string `json:"filename,omitempty" jsonschema:"File name shown in the notebook (default: base name of path)"`
	Path       string `json:"path,omitempty" jsonschema:"Local PDF path readable by the server"`
	Base64     string `json:"base64,omitempty" jsonschema:"PDF bytes, base64 encoded. Used when path is empty."`
}

type DeleteSourcesInput struct {
	NotebookID string   `json:"notebook_id" jsonschema:"Notebook ID"`
	SourceIDs  []string `json:"source_ids" jsonschema:"Source IDs from nlm_get_notebook"`
}

// --- YouTube comments tool inputs ---

type CommentsStartInput struct {
	Video          string `json:"video" jsonschema:"YouTube video URL or 11-character video ID"`
	NotebookID     string `json:"notebook_id" jsonschema:"Notebook that receives the comment documents"`
	Mode           string `json:"mode,omitempty" jsonschema:"Comment order: top (default) or newest"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Max top-level comments, 0 = all"`
	IncludeReplies *bool  `json:"include_replies,omitempty" jsonschema:"Fetch replies (default: true for top, false for newest)"`
}

type VideoInput struct {
	Video string `json:"video" jsonschema:"YouTube video URL or 11-character video ID"`
}

// --- Queue & history tool inputs ---

type QueueAddInput struct {
	URLs   []string `json:"urls" jsonschema:"URLs to queue"`
	Titles []string `json:"titles,omitempty" jsonschema:"Optional titles, matched to urls by position"`
}

type QueueProcessInput struct {
	NotebookID string `json:"notebook_id" jsonschema:"Notebook that receives the queued URLs"`
	DelayMS    int    `json:"delay_ms,omitempty" jsonschema:"Pause between sources in milliseconds (default from QUEUE_ADD_DELAY)"`
}

type HistoryListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max entries, newest first (default: all kept)"`
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}
