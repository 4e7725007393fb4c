package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/listen/internal/chunker"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/dgnsrekt/listen/utils"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
)

var headingPattern = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t#]*$`)

// stdinPath identifies the article read from standard input.
const stdinPath = "-"

// article is a document in the list. Each article owns the playback session
// that reads it aloud.
type article struct {
	localPath string
	meta      utils.Frontmatter

	Title   string
	Note    string
	Body    string
	Modtime time.Time

	// Value we filter against. This exists so that we can maintain
	// positions of filtered items if titles are edited while a filter is
	// active.
	filterValue string

	session *playback.Session
}

func newArticle(path, cwd string, modtime time.Time) *article {
	return &article{
		localPath: path,
		Note:      stripAbsolutePath(path, cwd),
		Modtime:   modtime,
	}
}

// readArticle loads the file at path.
func readArticle(path, cwd string) (*article, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat article: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read article: %w", err)
	}
	a := newArticle(path, cwd, info.ModTime())
	a.setContent(content)
	return a, nil
}

// setContent replaces the front matter, title and body.
func (a *article) setContent(content []byte) {
	meta, body := utils.ParseFrontmatter(content)
	a.meta = meta
	a.Body = string(body)

	switch {
	case meta.Title != "":
		a.Title = meta.Title
	case headingPattern.Match(body):
		a.Title = strings.TrimSpace(string(headingPattern.FindSubmatch(body)[1]))
	case a.localPath != "" && a.localPath != stdinPath:
		a.Title = strings.TrimSuffix(filepath.Base(a.localPath), filepath.Ext(a.localPath))
	default:
		a.Title = "Untitled"
	}
	a.buildFilterValue()
}

// speech is the text the article's session reads. A title that only lives
// in the front matter is read first.
func (a *article) speech() string {
	text := chunker.PlainText(a.Body)
	title := strings.TrimSpace(a.meta.Title)
	if title == "" || strings.HasPrefix(text, title) {
		return text
	}
	if !strings.ContainsAny(title[len(title)-1:], ".!?") {
		title += "."
	}
	return title + "\n\n" + text
}

// id is the session ID for the article.
func (a *article) id() string {
	if a.localPath == "" {
		return stdinPath
	}
	return a.localPath
}

// Generate the value we're doing to filter against.
func (a *article) buildFilterValue() {
	a.filterValue = strings.Join(append([]string{a.Title, a.Note}, a.meta.Tags...), " ")
}

// relativeTime describes when the article was written, preferring the date
// in its front matter.
func (a *article) relativeTime() string {
	t := a.Modtime
	if !a.meta.Date.IsZero() {
		t = a.meta.Date
	}
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// sortArticles orders articles by title, falling back to path.
func sortArticles(articles []*article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, tj := strings.ToLower(articles[i].Title), strings.ToLower(articles[j].Title)
		if ti != tj {
			return ti < tj
		}
		return articles[i].localPath < articles[j].localPath
	})
}

// filterArticles returns the articles matching term, best match first.
func filterArticles(term string, articles []*article) []*article {
	if strings.TrimSpace(term) == "" {
		return articles
	}

	targets := make([]string, len(articles))
	for i, a := range articles {
		targets[i] = a.filterValue
	}

	ranks := fuzzy.Find(term, targets)
	sort.Stable(ranks)

	filtered := make([]*article, 0, len(ranks))
	for _, r := range ranks {
		filtered = append(filtered, articles[r.Index])
	}
	return filtered
}
