package notion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/notechat/notechat/internal/index"
)

// defaultTitle is used for pages whose title property is empty.
const defaultTitle = "Untitled"

// PageSource is the Notion API surface the Extractor needs. *Client
// satisfies it; tests substitute fakes.
type PageSource interface {
	QueryDatabase(ctx context.Context, databaseID string) ([]Page, error)
	GetBlockChildren(ctx context.Context, blockID string) ([]Block, error)
}

// Extractor turns the pages of one Notion database into index-ready
// documents.
type Extractor struct {
	source     PageSource
	databaseID string
	logger     *slog.Logger
}

// NewExtractor creates an Extractor over the given database.
func NewExtractor(source PageSource, databaseID string, logger *slog.Logger) (*Extractor, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if databaseID == "" {
		return nil, fmt.Errorf("database ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, databaseID: databaseID, logger: logger}, nil
}

// Extract fetches every page of the database and shapes each into a
// Document: the page ID as stable identity, the page title as category
// (defaulting to "Untitled") and the dedented block text as content.
//
// A page whose blocks cannot be fetched fails the whole extraction; partial
// snapshots would silently shrink the index on the next reindex.
func (e *Extractor) Extract(ctx context.Context) ([]index.Document, error) {
	pages, err := e.source.QueryDatabase(ctx, e.databaseID)
	if err != nil {
		return nil, fmt.Errorf("querying database %s: %w", e.databaseID, err)
	}

	docs := make([]index.Document, 0, len(pages))
	for _, page := range pages {
		blocks, err := e.source.GetBlockChildren(ctx, page.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching blocks of page %s: %w", page.ID, err)
		}

		title := pageTitle(page)
		text := blocksToText(blocks)

		docs = append(docs, index.Document{
			ID:       page.ID,
			Category: title,
			Text:     text,
		})

		e.logger.Debug("extracted page",
			"page_id", page.ID,
			"title", title,
			"text_length", len(text))
	}

	e.logger.Info("extraction completed",
		"database_id", e.databaseID,
		"documents", len(docs))
	return docs, nil
}

// pageTitle returns the page title from its title-typed property, or
// defaultTitle when the property is absent or empty.
func pageTitle(page Page) string {
	for _, prop := range page.Properties {
		if prop.Type != "title" {
			continue
		}
		if len(prop.Title) == 0 {
			return defaultTitle
		}
		return prop.Title[0].PlainText
	}
	return defaultTitle
}

// blocksToText flattens blocks into plain text. Each text-bearing block
// becomes one line (its rich text segments concatenated); blocks without
// rich text are skipped. Lines are joined with newlines and dedented.
func blocksToText(blocks []Block) string {
	var lines []string
	for _, block := range blocks {
		rt := block.richText()
		if rt == nil {
			continue
		}
		var sb strings.Builder
		for _, t := range rt {
			sb.WriteString(t.PlainText)
		}
		lines = append(lines, sb.String())
	}
	return Dedent(strings.Join(lines, "\n"))
}

// Dedent removes the whitespace prefix common to all non-blank lines.
// Blank lines (empty or whitespace-only) do not contribute to the margin
// and are normalized to empty. Dedent is idempotent.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")

	margin := ""
	first := true
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		prefix := line[:len(line)-len(trimmed)]
		if first {
			margin = prefix
			first = false
			continue
		}
		margin = commonPrefix(margin, prefix)
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(out, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
