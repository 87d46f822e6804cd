package htmlexport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NotesTagger/internal/domain"
	"NotesTagger/internal/logging"
	"NotesTagger/internal/ports"
)

const blockSelector = "p, pre, li, blockquote, h2, h3, h4, h5, h6"

// Source reads notes exported as one HTML file each, laid out as <root>/<scope>/*.html.
type Source struct {
	root   string
	logger *slog.Logger
}

var _ ports.RecordSource = (*Source)(nil)

// NewSource wires the export root directory.
func NewSource(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Source{root: root, logger: logger}
}

// QueryRecords parses every HTML file of a scope directory in file-name order.
// A missing scope directory yields no records.
func (s *Source) QueryRecords(ctx context.Context, scope string) ([]domain.Record, error) {
	if scope == "" || strings.ContainsAny(scope, `/\`) || scope == "." || scope == ".." {
		return nil, fmt.Errorf("invalid scope %q", scope)
	}

	dir := filepath.Join(s.root, scope)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("scope directory missing", "scope", scope, "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scope %s: %w", scope, err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.Type().IsRegular() && (ext == ".html" || ext == ".htm") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]domain.Record, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.parseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", scope, err)
		}
		rec.Scope = scope
		records = append(records, rec)
	}

	s.logger.Debug("scope parsed", "scope", scope, "count", len(records))
	return records, nil
}

func (s *Source) parseFile(path string) (domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Record{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse document %s: %w", path, err)
	}

	fallbackID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseNote(doc, fallbackID), nil
}

func parseNote(doc *goquery.Document, fallbackID string) domain.Record {
	var rec domain.Record

	rec.ID = metaContent(doc, "record-id")
	if rec.ID == "" {
		rec.ID = metaContent(doc, "uuid")
	}
	if rec.ID == "" {
		rec.ID = fallbackID
	}

	rec.Title = strings.TrimSpace(doc.Find("head > title").First().Text())
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	for _, kw := range strings.Split(metaContent(doc, "keywords"), ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			rec.AddLabel(kw)
		}
	}
	doc.Find(".tags .tag, a[rel=\"tag\"]").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			rec.AddLabel(tag)
		}
	})

	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("body").First()
		content.Find("h1, .tags, a[rel=\"tag\"]").Remove()
	}
	rec.Body = extractText(content)

	return rec
}

func metaContent(doc *goquery.Document, name string) string {
	value, _ := doc.Find(fmt.Sprintf("meta[name=%q]", name)).First().Attr("content")
	return strings.TrimSpace(value)
}

func extractText(sel *goquery.Selection) string {
	var lines []string
	sel.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		// Nested blocks are collected by their innermost element only.
		if block.Find(blockSelector).Length() > 0 {
			return
		}
		if line := strings.TrimSpace(block.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return strings.Join(lines, "\n")
}
