package imageedit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

type fakeGenerator struct {
	resp *types.ContentResponse
	err  error
	req  *types.ContentRequest
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, req *types.ContentRequest) (*types.ContentResponse, error) {
	g.req = req
	return g.resp, g.err
}

func img(b byte) types.InlineMediaPart {
	return types.NewInlineMedia("image/png", []byte{b})
}

func TestHistory_PushTruncatesForward(t *testing.T) {
	var h History
	h.Open(img(0))
	h.Push(img(1), "one")
	h.Push(img(2), "two")
	h.Undo()
	h.Undo()
	if h.Index() != 0 || !h.CanRedo() || h.CanUndo() {
		t.Fatalf("after undo: index=%d canRedo=%v canUndo=%v", h.Index(), h.CanRedo(), h.CanUndo())
	}

	h.Push(img(3), "three")
	entries := h.Entries()
	if len(entries) != 2 || entries[1].Label != "three" || h.Index() != 1 {
		t.Fatalf("entries=%+v index=%d", entries, h.Index())
	}
	if h.CanRedo() {
		t.Fatal("redo tail survived a push")
	}
}

func TestHistory_Bounds(t *testing.T) {
	var h History
	if h.Undo() || h.Redo() || h.ResetToOriginal() {
		t.Fatal("empty history moved")
	}
	if _, ok := h.Current(); ok {
		t.Fatal("empty history has a current entry")
	}
	h.Open(img(0))
	if h.Undo() || h.Redo() {
		t.Fatal("single entry moved")
	}
	cur, _ := h.Current()
	if cur.Label != "Open" {
		t.Fatalf("Label=%q, want Open", cur.Label)
	}
}

func TestHistory_ResetToOriginal(t *testing.T) {
	var h History
	h.Open(img(7))
	h.Push(img(8), "brighter")
	if !h.ResetToOriginal() {
		t.Fatal("ResetToOriginal() = false")
	}
	cur, _ := h.Current()
	if cur.Label != "Reset to Original" || cur.Image != img(7) || len(h.Entries()) != 3 {
		t.Fatalf("current=%+v entries=%d", cur, len(h.Entries()))
	}
	if !h.Undo() {
		t.Fatal("reset should be undoable")
	}
}

func TestShortLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"make it pop", "make it pop"},
		{"exactly twenty-five runes", "exactly twenty-five runes"},
		{"add a dramatic sunset sky behind the mountains", "add a dramatic sunset ..."},
	}
	for _, tt := range tests {
		if got := shortLabel(tt.in); got != tt.want {
			t.Errorf("shortLabel(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEditor_Edit(t *testing.T) {
	gen := &fakeGenerator{resp: &types.ContentResponse{Parts: []types.Part{types.TextPart{Text: "here"}, img(9)}}}
	e := NewEditor(gen, nil)
	if err := e.Open(img(1)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	entry, err := e.Edit(context.Background(), "  remove the background  ")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if entry.Image != img(9) || entry.Label != "remove the background" {
		t.Fatalf("entry=%+v", entry)
	}
	if gen.req.Model != types.ImageEditModel || gen.req.Modality != types.ModalityImage {
		t.Fatalf("request=%+v", gen.req)
	}
	if gen.req.Parts[0] != img(1) {
		t.Fatalf("first part=%+v, want the current image", gen.req.Parts[0])
	}
	entries, idx := e.Entries()
	if len(entries) != 2 || idx != 1 {
		t.Fatalf("entries=%d index=%d", len(entries), idx)
	}
}

func TestEditor_EditPreconditions(t *testing.T) {
	e := NewEditor(&fakeGenerator{}, nil)
	if _, err := e.Edit(context.Background(), "x"); err == nil {
		t.Fatal("Edit() without image should fail")
	}
	_ = e.Open(img(1))
	if _, err := e.Edit(context.Background(), "   "); err == nil {
		t.Fatal("Edit() with blank prompt should fail")
	}
	if err := e.Open(types.InlineMediaPart{MIMEType: "video/mp4", Data: "eA=="}); err == nil {
		t.Fatal("Open() accepted a video")
	}
}

func TestEditor_NoImageReasons(t *testing.T) {
	tests := []struct {
		name string
		resp *types.ContentResponse
		want string
	}{
		{
			name: "blocked with details",
			resp: &types.ContentResponse{BlockReason: "SAFETY", BlockReasonMessage: "unsafe content"},
			want: "Request blocked due to 'SAFETY'. Details: unsafe content",
		},
		{
			name: "blocked",
			resp: &types.ContentResponse{BlockReason: "OTHER"},
			want: "Request blocked due to 'OTHER'.",
		},
		{
			name: "finish reason",
			resp: &types.ContentResponse{FinishReason: "IMAGE_SAFETY"},
			want: "Generation failed. Reason: IMAGE_SAFETY. Please adjust your prompt.",
		},
		{
			name: "text instead",
			resp: &types.ContentResponse{Text: "I cannot do that", FinishReason: "STOP"},
			want: `The AI returned a text message instead of an image: "I cannot do that"`,
		},
		{
			name: "nothing",
			resp: &types.ContentResponse{FinishReason: "STOP"},
			want: "The AI did not return an image.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEditor(&fakeGenerator{resp: tt.resp}, nil)
			_ = e.Open(img(1))
			_, err := e.Edit(context.Background(), "edit")
			var coreErr *core.Error
			if !errors.As(err, &coreErr) || coreErr.Type != core.ErrEmptyResult {
				t.Fatalf("Edit() error = %v, want empty result", err)
			}
			if coreErr.Message != tt.want {
				t.Fatalf("Message=%q, want %q", coreErr.Message, tt.want)
			}
			if entries, _ := e.Entries(); len(entries) != 1 {
				t.Fatal("failed edit changed the history")
			}
		})
	}
}

func TestEditor_BackendError(t *testing.T) {
	e := NewEditor(&fakeGenerator{err: errors.New("quota")}, nil)
	_ = e.Open(img(1))
	if _, err := e.Edit(context.Background(), "edit"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("Edit() error = %v", err)
	}
}
