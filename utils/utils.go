// Package utils provides helpers for reading articles from disk.
package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

var yamlPattern = regexp.MustCompile(`(?m)^---\r?\n(\s*\r?\n)?`)

// Frontmatter is the YAML header of an article.
type Frontmatter struct {
	Title   string    `yaml:"title"`
	Author  string    `yaml:"author"`
	Summary string    `yaml:"summary"`
	Date    time.Time `yaml:"date"`
	Tags    []string  `yaml:"tags"`
}

// RemoveFrontmatter removes the front matter header of a markdown file.
func RemoveFrontmatter(content []byte) []byte {
	if bounds := detectFrontmatter(content); bounds[0] == 0 {
		return content[bounds[1]:]
	}
	return content
}

// ParseFrontmatter splits content into its front matter and body. Content
// without a header, or with one that is not valid YAML, yields a zero
// Frontmatter and the unchanged content.
func ParseFrontmatter(content []byte) (Frontmatter, []byte) {
	var fm Frontmatter
	bounds := detectFrontmatter(content)
	if bounds[0] != 0 {
		return fm, content
	}

	header := content[:bounds[1]]
	header = bytes.TrimPrefix(header, []byte("---"))
	if i := bytes.LastIndex(header, []byte("---")); i >= 0 {
		header = header[:i]
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return Frontmatter{}, content
	}
	return fm, content[bounds[1]:]
}

func detectFrontmatter(c []byte) []int {
	if matches := yamlPattern.FindAllIndex(c, 2); len(matches) > 1 {
		return []int{matches[0][0], matches[1][1]}
	}
	return []int{-1, -1}
}

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

var markdownExtensions = []string{
	".md", ".mdown", ".mkdn", ".mkd", ".markdown",
}

// IsMarkdownFile returns whether the filename has a markdown extension.
func IsMarkdownFile(filename string) bool {
	ext := filepath.Ext(filename)

	if ext == "" {
		// By default, assume it's a markdown file.
		return true
	}

	for _, v := range markdownExtensions {
		if strings.EqualFold(ext, v) {
			return true
		}
	}

	return false
}

// GlamourStyle returns a glamour.TermRendererOption based on the given style.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(ExpandPath(style))
}
