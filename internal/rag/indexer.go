package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/notechat/notechat/internal/index"
)

// ErrReindexBusy indicates another reindex run holds the lock. Overlapping
// runs would interleave partial snapshots, so the late caller is rejected
// instead of queued.
var ErrReindexBusy = errors.New("reindex already in progress")

// Source produces the documents to index. *notion.Extractor satisfies it.
type Source interface {
	Extract(ctx context.Context) ([]index.Document, error)
}

// Uploader stores embedded records. *index.Manager satisfies it.
type Uploader interface {
	Upload(ctx context.Context, records []index.Record) ([]index.UploadResult, error)
}

// DocumentOutcome reports what happened to one document during a reindex.
type DocumentOutcome struct {
	ID       string
	Category string
	Err      error
}

// Report summarizes one reindex run.
type Report struct {
	// Total is the number of documents the source produced.
	Total int

	// Embedded is the number of documents that got a vector.
	Embedded int

	// Uploaded is the number of records stored in the index.
	Uploaded int

	// Failed counts documents that failed to embed or upload.
	Failed int

	// Empty counts documents with empty text. They are embedded and
	// uploaded like any other; the count exists so operators notice a
	// source full of blank pages.
	Empty int

	// Duration is the wall time of the whole run.
	Duration time.Duration

	// Documents holds the per-document outcomes in source order.
	Documents []DocumentOutcome
}

// Indexer rebuilds the search index from a document source.
//
// Runs are mutually exclusive: within the process via a mutex, across
// processes via an optional file lock.
type Indexer struct {
	source   Source
	embedder Embedder
	uploader Uploader
	logger   *slog.Logger

	mu       sync.Mutex
	lockPath string
}

// NewIndexer creates an Indexer. lockPath enables a cross-process file lock
// when non-empty.
func NewIndexer(source Source, embedder Embedder, uploader Uploader, lockPath string, logger *slog.Logger) (*Indexer, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:   source,
		embedder: embedder,
		uploader: uploader,
		lockPath: lockPath,
		logger:   logger,
	}, nil
}

// ReindexAll extracts every document from the source, embeds each one and
// upserts the results into the index.
//
// A document that fails to embed is skipped with a warning; the run keeps
// going and the failure lands in the Report. Extraction and upload failures
// abort the run. A concurrent run returns ErrReindexBusy.
func (ix *Indexer) ReindexAll(ctx context.Context) (*Report, error) {
	if !ix.mu.TryLock() {
		return nil, ErrReindexBusy
	}
	defer ix.mu.Unlock()

	if ix.lockPath != "" {
		fl := flock.New(ix.lockPath)
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring reindex lock %s: %w", ix.lockPath, err)
		}
		if !locked {
			return nil, ErrReindexBusy
		}
		defer func() {
			if err := fl.Unlock(); err != nil {
				ix.logger.Warn("releasing reindex lock failed", "path", ix.lockPath, "error", err)
			}
		}()
	}

	start := time.Now()

	docs, err := ix.source.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extracting documents: %w", err)
	}

	report := &Report{
		Total:     len(docs),
		Documents: make([]DocumentOutcome, len(docs)),
	}

	if len(docs) == 0 {
		report.Duration = time.Since(start)
		ix.logger.Info("reindex complete, source is empty")
		return report, nil
	}

	records := make([]index.Record, 0, len(docs))
	recordDoc := make([]int, 0, len(docs)) // record position -> document position

	for i, doc := range docs {
		report.Documents[i] = DocumentOutcome{ID: doc.ID, Category: doc.Category}
		if doc.Text == "" {
			report.Empty++
		}

		ix.logger.Info("embedding document",
			"progress", fmt.Sprintf("%d/%d", i+1, len(docs)),
			"id", doc.ID,
			"category", doc.Category)

		vec, err := ix.embedder.EmbedText(ctx, doc.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("reindex canceled: %w", ctx.Err())
			}
			ix.logger.Warn("skipping document, embedding failed",
				"id", doc.ID,
				"category", doc.Category,
				"error", err)
			report.Documents[i].Err = fmt.Errorf("embedding: %w", err)
			report.Failed++
			continue
		}

		report.Embedded++
		records = append(records, index.Record{Document: doc, TextVector: vec})
		recordDoc = append(recordDoc, i)
	}

	if len(records) > 0 {
		results, err := ix.uploader.Upload(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("uploading records: %w", err)
		}
		for ri, res := range results {
			di := recordDoc[ri]
			if res.Err != nil {
				report.Documents[di].Err = fmt.Errorf("uploading: %w", res.Err)
				report.Failed++
				continue
			}
			report.Uploaded++
		}
	}

	report.Duration = time.Since(start)
	ix.logger.Info("reindex complete",
		"total", report.Total,
		"embedded", report.Embedded,
		"uploaded", report.Uploaded,
		"failed", report.Failed,
		"empty", report.Empty,
		"duration", report.Duration)
	return report, nil
}
