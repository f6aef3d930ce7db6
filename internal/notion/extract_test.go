package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notechat/notechat/internal/log"
)

type fakeSource struct {
	pages     []Page
	blocks    map[string][]Block
	queryErr  error
	blocksErr map[string]error
}

func (f *fakeSource) QueryDatabase(_ context.Context, _ string) ([]Page, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.pages, nil
}

func (f *fakeSource) GetBlockChildren(_ context.Context, blockID string) ([]Block, error) {
	if err := f.blocksErr[blockID]; err != nil {
		return nil, err
	}
	return f.blocks[blockID], nil
}

func titledPage(id, title string) Page {
	p := Page{ID: id, Properties: map[string]Property{}}
	prop := Property{Type: "title"}
	if title != "" {
		prop.Title = []RichText{{Type: "text", PlainText: title}}
	}
	p.Properties["Name"] = prop
	return p
}

func paragraph(texts ...string) Block {
	rt := make([]RichText, 0, len(texts))
	for _, t := range texts {
		rt = append(rt, RichText{Type: "text", PlainText: t})
	}
	return Block{Type: "paragraph", Paragraph: &TextBlock{RichText: rt}}
}

func TestExtract(t *testing.T) {
	src := &fakeSource{
		pages: []Page{
			titledPage("page-a", "Meeting Notes"),
			titledPage("page-b", ""),
		},
		blocks: map[string][]Block{
			"page-a": {
				paragraph("We discussed the ", "hiring plan."),
				{Type: "divider"}, // no rich text, skipped
				paragraph("Next steps follow."),
			},
			"page-b": {},
		},
	}

	e, err := NewExtractor(src, "db-1", log.NewNop())
	require.NoError(t, err)

	docs, err := e.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "page-a", docs[0].ID)
	assert.Equal(t, "Meeting Notes", docs[0].Category)
	assert.Equal(t, "We discussed the hiring plan.\nNext steps follow.", docs[0].Text)

	// Empty title falls back, empty body is kept rather than dropped
	assert.Equal(t, "page-b", docs[1].ID)
	assert.Equal(t, "Untitled", docs[1].Category)
	assert.Equal(t, "", docs[1].Text)
}

func TestExtractEmptyDatabase(t *testing.T) {
	e, err := NewExtractor(&fakeSource{}, "db-1", log.NewNop())
	require.NoError(t, err)

	docs, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestExtractQueryFailure(t *testing.T) {
	src := &fakeSource{queryErr: errors.New("boom")}
	e, err := NewExtractor(src, "db-1", log.NewNop())
	require.NoError(t, err)

	_, err = e.Extract(context.Background())
	assert.Error(t, err)
}

func TestExtractBlockFetchFailureIsFatal(t *testing.T) {
	src := &fakeSource{
		pages:     []Page{titledPage("page-a", "A"), titledPage("page-b", "B")},
		blocks:    map[string][]Block{"page-a": {paragraph("ok")}},
		blocksErr: map[string]error{"page-b": errors.New("rate limited")},
	}

	e, err := NewExtractor(src, "db-1", log.NewNop())
	require.NoError(t, err)

	_, err = e.Extract(context.Background())
	assert.Error(t, err, "a partial snapshot must not be returned")
}

func TestNewExtractorValidation(t *testing.T) {
	_, err := NewExtractor(nil, "db-1", log.NewNop())
	assert.Error(t, err)

	_, err = NewExtractor(&fakeSource{}, "", log.NewNop())
	assert.Error(t, err)
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want string
	}{
		{
			name: "title present",
			page: titledPage("p", "Roadmap"),
			want: "Roadmap",
		},
		{
			name: "empty title property",
			page: titledPage("p", ""),
			want: "Untitled",
		},
		{
			name: "no title property at all",
			page: Page{ID: "p", Properties: map[string]Property{"Tags": {Type: "multi_select"}}},
			want: "Untitled",
		},
		{
			name: "title under a non-English property name",
			page: Page{ID: "p", Properties: map[string]Property{
				"名前": {Type: "title", Title: []RichText{{PlainText: "議事録"}}},
			}},
			want: "議事録",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageTitle(tt.page))
		})
	}
}

func TestBlocksToTextFlattensRichText(t *testing.T) {
	blocks := []Block{
		{Type: "heading_1", Heading1: &TextBlock{RichText: []RichText{{PlainText: "Agenda"}}}},
		paragraph("First ", "item"),
		{Type: "to_do", ToDo: &ToDoBlock{RichText: []RichText{{PlainText: "follow up"}}, Checked: true}},
		{Type: "code", Code: &CodeBlock{RichText: []RichText{{PlainText: "SELECT 1"}}, Language: "sql"}},
	}

	assert.Equal(t, "Agenda\nFirst item\nfollow up\nSELECT 1", blocksToText(blocks))
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "no indentation", in: "a\nb", want: "a\nb"},
		{name: "uniform indentation", in: "    a\n    b", want: "a\nb"},
		{name: "mixed depth keeps relative indent", in: "    a\n        b", want: "a\n    b"},
		{name: "blank lines do not break the margin", in: "    a\n\n    b", want: "a\n\nb"},
		{name: "whitespace-only lines normalized", in: "    a\n  \t\n    b", want: "a\n\nb"},
		{name: "tabs and spaces do not mix", in: "\ta\n    b", want: "\ta\n    b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dedent(tt.in))
		})
	}
}

func TestDedentIdempotent(t *testing.T) {
	in := "    a\n      b\n\n    c"
	once := Dedent(in)
	assert.Equal(t, once, Dedent(once))
}
