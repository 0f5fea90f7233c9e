// Package jobdesc reads job descriptions from a folder of .txt and .html
// files.
package jobdesc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotFound is returned when no JD file has the requested name.
	ErrNotFound = errors.New("job description not found")
	// ErrInvalidName rejects names that would escape the JD folder.
	ErrInvalidName = errors.New("invalid job description name")
)

var supportedExt = map[string]bool{
	".txt":  true,
	".html": true,
	".htm":  true,
}

// Supported reports whether name has a JD file extension.
func Supported(name string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(name))]
}

// Store resolves JD names inside one folder.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the folder the store reads from.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the plain text of the JD file called name.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read job description %s: %w", name, err)
	}
	return Text(name, data)
}

// List returns the JD file names in the folder, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list job descriptions: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// Text decodes a JD file body. HTML is reduced to its visible text with one
// block element per line; anything else is returned as is.
func Text(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return HTMLText(data)
	default:
		return string(bytes.ToValidUTF8(data, nil)), nil
	}
}

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, td, th, pre, blockquote"

// HTMLText extracts readable text from an HTML job posting.
func HTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, head").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Nested blocks are emitted by their innermost element.
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(sel.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
