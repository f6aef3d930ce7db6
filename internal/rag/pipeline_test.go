package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notechat/notechat/internal/index"
	"github.com/notechat/notechat/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// keywordEmbedder produces deterministic vectors: one axis per known
// keyword, so texts sharing words end up close in cosine space.
type keywordEmbedder struct {
	keywords []string
}

func (k *keywordEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(k.keywords)+1)
	lower := strings.ToLower(text)
	hit := false
	for i, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
			hit = true
		}
	}
	if !hit {
		vec[len(k.keywords)] = 1 // texts without keywords cluster away from all of them
	}
	return vec, nil
}

// memoryIndex is an in-memory stand-in for the vector index, implementing
// both Uploader and Searcher with exact cosine similarity.
type memoryIndex struct {
	records map[string]index.Record
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{records: make(map[string]index.Record)}
}

func (m *memoryIndex) Upload(_ context.Context, records []index.Record) ([]index.UploadResult, error) {
	results := make([]index.UploadResult, len(records))
	for i, rec := range records {
		results[i].ID = rec.ID
		m.records[rec.ID] = rec
	}
	return results, nil
}

func (m *memoryIndex) Search(_ context.Context, vector []float32, topK int) ([]index.Hit, error) {
	hits := make([]index.Hit, 0, len(m.records))
	for _, rec := range m.records {
		hits = append(hits, index.Hit{
			ID:       rec.ID,
			Category: rec.Category,
			Text:     rec.Text,
			Score:    cosine(vector, rec.TextVector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TestPipelineEndToEnd runs the whole flow against fakes: extract two pages,
// index them, then answer a question grounded on the closest one.
func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()

	source := &fakeDocSource{docs: []index.Document{
		{ID: "page-a", Category: "Meeting Notes", Text: "We discussed the hiring plan for the platform team."},
		{ID: "page-b", Category: "Untitled", Text: "Release scheduled for the end of the quarter."},
	}}
	embedder := &keywordEmbedder{keywords: []string{"hiring", "release"}}
	store := newMemoryIndex()

	ix, err := NewIndexer(source, embedder, store, "", log.NewNop())
	require.NoError(t, err)

	report, err := ix.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Uploaded)

	retriever, err := NewRetriever(embedder, store, 1, log.NewNop())
	require.NoError(t, err)

	var grounding string
	complete := func(_ context.Context, system, question string) (string, error) {
		grounding = system
		return "The hiring plan covers the platform team.", nil
	}
	generator, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	hits, err := retriever.Retrieve(ctx, "what is the hiring plan?")
	require.NoError(t, err)
	require.Len(t, hits, 1, "top-k of 1 returns exactly the closest page")
	assert.Equal(t, "page-a", hits[0].ID)
	assert.Equal(t, "Meeting Notes", hits[0].Category)

	answer := generator.Generate(ctx, "what is the hiring plan?", hits)
	assert.Equal(t, "The hiring plan covers the platform team.", answer)
	assert.Contains(t, grounding, "hiring plan for the platform team",
		"the answer is grounded on the retrieved page text")
	assert.NotContains(t, grounding, "Release scheduled",
		"pages outside top-k stay out of the prompt")
}

// TestPipelineReindexConverges reindexes twice and checks the index does not
// grow: same page ids upsert in place.
func TestPipelineReindexConverges(t *testing.T) {
	ctx := context.Background()

	source := &fakeDocSource{docs: []index.Document{
		{ID: "page-a", Category: "Notes", Text: "hiring"},
	}}
	embedder := &keywordEmbedder{keywords: []string{"hiring"}}
	store := newMemoryIndex()

	ix, err := NewIndexer(source, embedder, store, "", log.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		report, err := ix.ReindexAll(ctx)
		require.NoError(t, err, fmt.Sprintf("run %d", i+1))
		assert.Equal(t, 1, report.Uploaded)
	}

	assert.Len(t, store.records, 1)
}
