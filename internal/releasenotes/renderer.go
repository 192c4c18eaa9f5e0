package releasenotes

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// notesExtension is the extension of release notes files.
const notesExtension = ".md"

// ErrNotFound is returned when a version has no release notes file.
var ErrNotFound = errors.New("release notes not found")

// flattener removes line breaks and neutralises the CDATA terminator.
//
//nolint:gochecknoglobals // Stateless replacer shared by all renderers.
var flattener = strings.NewReplacer(
	"\r", "",
	"\n", "",
	"]]>", "]]&gt;",
)

// Renderer turns <dir>/<version>.md into a styled HTML block.
type Renderer struct {
	// dir holds the markdown files.
	dir string
	// style is the CSS placed in front of the rendered notes.
	style string
	// markdown is the configured converter, safe for reuse.
	markdown goldmark.Markdown
}

// NewRenderer creates a renderer reading notes from dir.
// Headings get generated ids, so "## Features" can be styled as h2#features.
func NewRenderer(dir, style string) *Renderer {
	return &Renderer{
		dir:   filepath.Clean(dir),
		style: style,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Path returns the location of the notes file for a version.
func (r *Renderer) Path(version string) string {
	return filepath.Join(r.dir, version+notesExtension)
}

// Render reads and renders the notes of a version.
// It returns ErrNotFound when the file does not exist.
func (r *Renderer) Render(version string) (string, error) {
	path := r.Path(version)

	source, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}

		return "", fmt.Errorf("read release notes: %w", err)
	}

	var rendered bytes.Buffer
	if err = r.markdown.Convert(source, &rendered); err != nil {
		return "", fmt.Errorf("convert %s: %w", path, err)
	}

	return r.wrap(rendered.Bytes())
}

// wrap places the rendered fragment after the style block
// and serializes everything to one line.
func (r *Renderer) wrap(fragment []byte) (string, error) {
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), newElement(atom.Body))
	if err != nil {
		return "", fmt.Errorf("parse rendered notes: %w", err)
	}

	style := newElement(atom.Style)
	style.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: r.style,
	})

	changelog := newElement(atom.Div)
	for _, node := range nodes {
		changelog.AppendChild(node)
	}

	container := newElement(atom.Div)
	container.AppendChild(style)
	container.AppendChild(changelog)

	var out strings.Builder
	if err = html.Render(&out, container); err != nil {
		return "", fmt.Errorf("render notes block: %w", err)
	}

	return flattener.Replace(out.String()), nil
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
	}
}
