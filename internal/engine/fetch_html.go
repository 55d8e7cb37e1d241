package engine

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var spaceRunRe = regexp.MustCompile(`[ \t]+`)

// FetchPage downloads a web page and returns its title and main content as markdown.
// Readability extraction is tried first; goquery body text is the fallback.
// GitHub file URLs are fetched raw.
func FetchPage(ctx context.Context, rawURL string) (title, content string, err error) {
	metrics.FetchRequests.Add(1)
	defer func() {
		if err != nil {
			metrics.FetchErrors.Add(1)
		}
	}()

	if raw := GithubRawURL(rawURL); IsRawGitHubURL(raw) {
		return fetchGitHubFile(ctx, raw)
	}

	body, err := FetchBody(ctx, rawURL, nil)
	if err != nil {
		return "", "", err
	}

	title, content, err = extractArticle(rawURL, body)
	if err != nil || strings.TrimSpace(content) == "" {
		title, content, err = extractWithGoquery(body)
		if err != nil {
			return "", "", err
		}
	}
	return strings.TrimSpace(title), TruncateRunes(strings.TrimSpace(content), cfg.MaxContentChars, "..."), nil
}

func extractArticle(rawURL string, body []byte) (string, string, error) {
	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", "", err
	}
	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		return article.Title, article.TextContent, nil
	}
	return article.Title, md, nil
}

// extractWithGoquery uses goquery for structured HTML parsing when readability fails.
func extractWithGoquery(body []byte) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", WrapError(CodeMalformedResponse, "parse html", err)
	}

	title = PageTitle(doc)

	removeSelectors := []string{
		"script", "style", "noscript", "iframe", "svg",
		"header", "footer", "nav", "aside",
		"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	}
	doc.Find(strings.Join(removeSelectors, ", ")).Remove()

	contentSel := doc.Find("article, main, .content, #content").First()
	if contentSel.Length() == 0 {
		contentSel = doc.Find("body")
	}

	var cleanLines []string
	for _, line := range strings.Split(contentSel.Text(), "\n") {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	return title, strings.Join(cleanLines, "\n"), nil
}

// PageTitle returns <title>, falling back to og:title.
func PageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(t)
	}
	return ""
}
