package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func newProcessor(t *testing.T, size, overlap int) *Processor {
	t.Helper()
	p, err := New(domain.BuildOptions{ChunkSize: size, ChunkOverlap: overlap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	p := newProcessor(t, 20, 5)
	if p.chunkSize != 20 || p.overlap != 5 {
		t.Errorf("unexpected sizes %d/%d", p.chunkSize, p.overlap)
	}

	invalid := []domain.BuildOptions{
		{ChunkSize: 5, ChunkOverlap: 5},
		{ChunkSize: 100, ChunkOverlap: 150},
		{ChunkSize: 0, ChunkOverlap: 0},
		{ChunkSize: 10, ChunkOverlap: -1},
	}
	for _, o := range invalid {
		if _, err := New(o); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("%+v: expected ErrInvalidArgument, got %v", o, err)
		}
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	chunks := newProcessor(t, 100, 20).Process(context.Background(), domain.Document{ID: "empty"})
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty content, got %d", len(chunks))
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := newProcessor(t, 100, 20)
	doc := domain.Document{ID: "test-doc", Text: "This is a small piece of content."}

	chunks := p.Process(context.Background(), doc)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small content, got %d", len(chunks))
	}
	if chunks[0].SourceID != doc.ID {
		t.Errorf("expected SourceID '%s', got '%s'", doc.ID, chunks[0].SourceID)
	}
	if chunks[0].Text != doc.Text {
		t.Errorf("expected content to match document content")
	}
	if chunks[0].Offsets.Start != 0 || chunks[0].Offsets.End != len(doc.Text) {
		t.Errorf("unexpected offsets %+v", chunks[0].Offsets)
	}
}

func TestProcessor_Process_OverlapIsExact(t *testing.T) {
	p := newProcessor(t, 10, 3)
	doc := domain.Document{ID: "d", Text: "0123456789ABCDEFGHIJ"}

	chunks := p.Process(context.Background(), doc)

	// stride 7: [0,10) [7,17) [14,20)
	want := []string{"0123456789", "789ABCDEFG", "EFGHIJ"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Text)
		}
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if prev.Offsets.End-cur.Offsets.Start != 3 {
			t.Errorf("chunks %d/%d overlap by %d", i-1, i, prev.Offsets.End-cur.Offsets.Start)
		}
	}
}

func TestProcessor_Process_CoversWholeDocument(t *testing.T) {
	p := newProcessor(t, 20, 5)
	text := strings.Repeat("lorem ipsum dolor ", 13)
	chunks := p.Process(context.Background(), domain.Document{ID: "d", Text: text})

	if chunks[0].Offsets.Start != 0 {
		t.Errorf("first chunk should start at 0")
	}
	if last := chunks[len(chunks)-1]; last.Offsets.End != len([]rune(text)) {
		t.Errorf("last chunk should end at %d, got %d", len(text), last.Offsets.End)
	}
	for _, c := range chunks {
		if got := len([]rune(c.Text)); got > 20 || got != c.Offsets.Len() {
			t.Errorf("chunk %d has length %d, offsets %+v", c.Index, got, c.Offsets)
		}
	}
}

func TestProcessor_Process_ExactMultipleHasNoTail(t *testing.T) {
	p := newProcessor(t, 50, 0)
	chunks := p.Process(context.Background(), domain.Document{ID: "d", Text: strings.Repeat("a", 100)})
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestProcessor_Process_MultiByteRunes(t *testing.T) {
	p := newProcessor(t, 4, 1)
	chunks := p.Process(context.Background(), domain.Document{ID: "d", Text: "héllo wörld"})

	if chunks[0].Text != "héll" {
		t.Errorf("expected rune-aligned chunk, got %q", chunks[0].Text)
	}
}

func TestProcessor_ProcessAll_NumbersAcrossCorpus(t *testing.T) {
	p := newProcessor(t, 20, 5)
	docs := []domain.Document{
		{ID: "doc-0", Text: "The cat sat on the mat."},
		{ID: "doc-1", Text: "Dogs are loyal companions."},
	}

	chunks, err := p.ProcessAll(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("expected index %d, got %d", i, c.Index)
		}
	}
	if chunks[2].SourceID != "doc-1" || chunks[2].Text != "Dogs are loyal compa" {
		t.Errorf("unexpected third chunk %+v", chunks[2])
	}
}

func TestProcessor_ProcessAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newProcessor(t, 10, 2).ProcessAll(ctx, []domain.Document{{ID: "d", Text: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
