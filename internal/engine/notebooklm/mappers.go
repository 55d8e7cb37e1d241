package notebooklm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// SourceType names a source's kind as reported by the type code.
type SourceType string

const (
	TypeGoogleDocs    SourceType = "google_docs"
	TypeGoogleOther   SourceType = "google_other"
	TypePDF           SourceType = "pdf"
	TypePastedText    SourceType = "pasted_text"
	TypeWebPage       SourceType = "web_page"
	TypeGeneratedText SourceType = "generated_text"
	TypeYouTube       SourceType = "youtube"
	TypeUploadedFile  SourceType = "uploaded_file"
	TypeImage         SourceType = "image"
	TypeWordDoc       SourceType = "word_doc"
	TypeUnknown       SourceType = "unknown"
)

var sourceTypes = map[int]SourceType{
	1:  TypeGoogleDocs,
	2:  TypeGoogleOther,
	3:  TypePDF,
	4:  TypePastedText,
	5:  TypeWebPage,
	8:  TypeGeneratedText,
	9:  TypeYouTube,
	11: TypeUploadedFile,
	13: TypeImage,
	14: TypeWordDoc,
}

// SourceTypeOf maps a numeric type code, unknown codes included.
func SourceTypeOf(code int) SourceType {
	if t, ok := sourceTypes[code]; ok {
		return t
	}
	return TypeUnknown
}

// Notebook is one entry of the notebook list.
type Notebook struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Emoji       string `json:"emoji,omitempty"`
	SourceCount int    `json:"source_count"`
}

// Source is one source inside a notebook.
type Source struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Type       SourceType `json:"type"`
	TypeCode   int        `json:"type_code"`
	URL        string     `json:"url,omitempty"`
	DriveDocID string     `json:"drive_doc_id,omitempty"`
	CanSync    bool       `json:"can_sync"`
}

// NotebookDetail is a notebook with its sources.
type NotebookDetail struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Sources []Source `json:"sources"`
}

// Account is a signed-in Google account.
type Account struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Photo    string `json:"photo,omitempty"`
	AuthUser int    `json:"authuser"`
}

// at walks v by positional indexes; any miss yields nil.
func at(v any, path ...int) any {
	for _, i := range path {
		arr, ok := v.([]any)
		if !ok || i < 0 || i >= len(arr) {
			return nil
		}
		v = arr[i]
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func list(v any) []any {
	arr, _ := v.([]any)
	return arr
}

func num(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// ParseNotebookList maps the list-notebooks payload. Entries without an id are dropped.
func ParseNotebookList(payload any) []Notebook {
	var out []Notebook
	for _, item := range list(at(payload, 0)) {
		id := str(at(item, 2))
		if id == "" {
			continue
		}
		title := strings.TrimSpace(str(at(item, 0)))
		if title == "" {
			title = "Untitled"
		}
		out = append(out, Notebook{
			ID:          id,
			Title:       title,
			Emoji:       str(at(item, 3)),
			SourceCount: len(list(at(item, 1))),
		})
	}
	return out
}

// ParseNotebookDetail maps the get-notebook payload.
func ParseNotebookDetail(payload any) NotebookDetail {
	nb := at(payload, 0)
	d := NotebookDetail{
		ID:      str(at(nb, 2)),
		Title:   str(at(nb, 0)),
		Sources: []Source{},
	}
	for _, s := range list(at(nb, 1)) {
		if src, ok := parseSource(s); ok {
			d.Sources = append(d.Sources, src)
		}
	}
	return d
}

func parseSource(s any) (Source, bool) {
	id := str(at(s, 0, 0))
	if id == "" {
		return Source{}, false
	}
	title := str(at(s, 1))
	if title == "" {
		title = "Untitled"
	}
	meta := at(s, 2)
	code, _ := num(at(meta, 4))
	drive := str(at(meta, 0, 0))
	return Source{
		ID:         id,
		Title:      title,
		Type:       SourceTypeOf(code),
		TypeCode:   code,
		URL:        str(at(meta, 7, 0)),
		DriveDocID: drive,
		CanSync:    drive != "" && (code == 1 || code == 2),
	}, true
}

var (
	uuidRe        = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	notebookURLRe = regexp.MustCompile(`/notebook/([a-zA-Z0-9_-]+)`)
)

// ParseCreatedNotebookID finds the new notebook id in a raw create response.
// The first UUID-shaped string wins; a /notebook/<id> path is the fallback.
func ParseCreatedNotebookID(raw string) string {
	if m := uuidRe.FindString(raw); m != "" {
		return m
	}
	if m := notebookURLRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// ParseFreshness maps a freshness-check payload: true fresh, false stale, nil unknown.
func ParseFreshness(payload any) *bool {
	v := at(payload, 0)
	if _, isNum := num(v); !isNum {
		v = at(payload, 0, 0)
	}
	n, ok := num(v)
	if !ok {
		return nil
	}
	var fresh bool
	switch n {
	case 1:
		fresh = true
	case 0:
		fresh = false
	default:
		return nil
	}
	return &fresh
}

// ParseRegisteredSourceID extracts the placeholder source id from a register-upload payload.
func ParseRegisteredSourceID(payload any) string {
	return str(at(payload, 0, 0, 0))
}

// ParseAccounts maps the accounts list (already unescaped JSON).
// Only entries with an email are kept; AuthUser is the position among those.
func ParseAccounts(data any) []Account {
	var out []Account
	for _, acc := range list(at(data, 1)) {
		email := str(at(acc, 3))
		if !strings.Contains(email, "@") {
			continue
		}
		out = append(out, Account{
			Email:    email,
			Name:     str(at(acc, 2)),
			Photo:    str(at(acc, 4)),
			AuthUser: len(out),
		})
	}
	return out
}
