package youtube

import (
	"sort"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// SortOption is one entry of the comment sort menu.
type SortOption struct {
	Title    string
	Token    string
	Selected bool
}

// PageContinuation is a continuation command found in page context.
type PageContinuation struct {
	Token    string
	TargetID string
}

// PageConfig is what the crawler needs from the watch page.
type PageConfig struct {
	APIKey        string
	Context       map[string]any
	SortMenu      []SortOption
	Continuations []PageContinuation
}

const (
	maxSearchDepth         = 20
	commentsSectionTarget  = "comments-section"
	sortMenuMinimumEntries = 2
)

// ExtractPageConfig combines the ytcfg values with continuations discovered
// under the given roots (watch-next results, engagement panels, or a comment
// page response).
func ExtractPageConfig(ytcfg map[string]any, roots ...any) PageConfig {
	pc := PageConfig{APIKey: str(ytcfg["INNERTUBE_API_KEY"])}
	if c, ok := ytcfg["INNERTUBE_CONTEXT"].(map[string]any); ok {
		pc.Context = c
	}
	pc.SortMenu, pc.Continuations = findContinuations(roots...)
	return pc
}

// findContinuations walks roots breadth-first collecting the first sort menu
// and every continuationCommand. A command without its own targetId takes the
// nearest enclosing one. Keys are visited in sorted order so the result does
// not depend on map iteration.
func findContinuations(roots ...any) ([]SortOption, []PageContinuation) {
	type node struct {
		v      any
		depth  int
		target string
	}
	var menu []SortOption
	var conts []PageContinuation
	seen := make(map[string]bool)

	queue := make([]node, 0, len(roots))
	for _, r := range roots {
		if r != nil {
			queue = append(queue, node{v: r})
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.depth > maxSearchDepth {
			continue
		}
		switch v := n.v.(type) {
		case []any:
			for _, child := range v {
				queue = append(queue, node{child, n.depth + 1, n.target})
			}
		case map[string]any:
			target := n.target
			if t := str(v["targetId"]); t != "" {
				target = t
			}
			if menu == nil {
				menu = sortMenu(v["sortFilterSubMenuRenderer"])
			}
			if cmd, ok := v["continuationCommand"].(map[string]any); ok {
				if tok := str(cmd["token"]); tok != "" && !seen[tok] {
					seen[tok] = true
					tid := str(cmd["targetId"])
					if tid == "" {
						tid = target
					}
					conts = append(conts, PageContinuation{Token: tok, TargetID: tid})
				}
			}
			for _, c := range sortedValues(v) {
				queue = append(queue, node{c, n.depth + 1, target})
			}
		}
	}
	return menu, conts
}

// sortedValues returns m's values ordered by key.
func sortedValues(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func sortMenu(v any) []SortOption {
	items := list(dig(v, "subMenuItems"))
	if len(items) == 0 {
		return nil
	}
	menu := make([]SortOption, 0, len(items))
	for _, it := range items {
		tok := str(dig(it, "serviceEndpoint", "continuationCommand", "token"))
		if tok == "" {
			tok = str(dig(it, "continuation", "reloadContinuationData", "continuation"))
		}
		sel, _ := dig(it, "selected").(bool)
		menu = append(menu, SortOption{Title: str(dig(it, "title")), Token: tok, Selected: sel})
	}
	return menu
}

// InitialContinuation picks the first root token for mode: the sort menu
// entry (top = first, newest = second) when the menu has at least two
// entries, otherwise the comments-section continuation.
func InitialContinuation(pc PageConfig, mode Mode) (string, error) {
	if len(pc.SortMenu) >= sortMenuMinimumEntries {
		idx := 0
		if mode == ModeNewest {
			idx = 1
		}
		if tok := pc.SortMenu[idx].Token; tok != "" {
			return tok, nil
		}
	}
	for _, c := range pc.Continuations {
		if c.TargetID == commentsSectionTarget {
			return c.Token, nil
		}
	}
	return "", engine.NewError(engine.CodeCommentsUnavailable, "no comment continuation found on page")
}
