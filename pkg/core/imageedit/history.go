// Package imageedit is the AI image editor: a linear undo history of images
// and an Edit operation that asks the image model to apply a prompt.
package imageedit

import "github.com/vango-go/vai-studio/pkg/core/types"

const (
	labelOpen    = "Open"
	labelReset   = "Reset to Original"
	maxLabelLen  = 25
	keepLabelLen = 22
)

// Entry is one step of the history.
type Entry struct {
	Image types.InlineMediaPart
	Label string
}

// History is a linear undo stack. Pushing after an undo discards the redo tail.
type History struct {
	entries []Entry
	index   int
}

// Open resets the history to a single original image.
func (h *History) Open(img types.InlineMediaPart) {
	h.entries = []Entry{{Image: img, Label: labelOpen}}
	h.index = 0
}

// Push truncates everything after the current entry and appends img.
func (h *History) Push(img types.InlineMediaPart, action string) {
	if len(h.entries) > 0 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, Entry{Image: img, Label: shortLabel(action)})
	h.index = len(h.entries) - 1
}

// Undo steps back. It reports whether the index moved.
func (h *History) Undo() bool {
	if !h.CanUndo() {
		return false
	}
	h.index--
	return true
}

// Redo steps forward. It reports whether the index moved.
func (h *History) Redo() bool {
	if !h.CanRedo() {
		return false
	}
	h.index++
	return true
}

// ResetToOriginal pushes the original image as a new step.
func (h *History) ResetToOriginal() bool {
	if len(h.entries) == 0 {
		return false
	}
	h.Push(h.entries[0].Image, labelReset)
	return true
}

func (h *History) CanUndo() bool { return h.index > 0 }

func (h *History) CanRedo() bool { return h.index < len(h.entries)-1 }

// Current returns the entry at the index.
func (h *History) Current() (Entry, bool) {
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[h.index], true
}

// Index is the position of the current entry.
func (h *History) Index() int { return h.index }

// Entries returns a copy of the history.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

func shortLabel(s string) string {
	r := []rune(s)
	if len(r) > maxLabelLen {
		return string(r[:keepLabelLen]) + "..."
	}
	return s
}
