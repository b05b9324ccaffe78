package chat

import (
	"strings"

	"github.com/vango-go/vai-studio/pkg/core/markup"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// snippetRadius is the number of runes kept on each side of a match.
const snippetRadius = 30

// SearchResult is a session matching a search query.
type SearchResult struct {
	Summary
	// Message is the index of the first matching message, or -1 when only
	// the title matched.
	Message int    `json:"message"`
	Snippet string `json:"snippet,omitempty"`
}

// Search returns the sessions whose title or text parts contain query,
// ignoring case, most recent first. Model replies are matched on their plain
// text, not their markup. An empty query matches nothing.
func (s *Store) Search(query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	s.mu.Lock()
	snaps := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		snaps = append(snaps, s.sessions[id].snapshot(id))
	}
	s.mu.Unlock()

	var out []SearchResult
	for _, snap := range snaps {
		res := SearchResult{
			Summary: Summary{ID: snap.ID, Title: snap.Title, Model: snap.Model, Messages: len(snap.Messages)},
			Message: -1,
		}
		titleMatch := strings.Contains(strings.ToLower(snap.Title), query)
		for i, msg := range snap.Messages {
			if text, ok := matchText(msg, query); ok {
				res.Message = i
				res.Snippet = snippet(text, query)
				break
			}
		}
		if titleMatch || res.Message >= 0 {
			out = append(out, res)
		}
	}
	return out
}

func matchText(msg types.Message, query string) (string, bool) {
	for _, part := range msg.Parts {
		tp, ok := part.(types.TextPart)
		if !ok {
			continue
		}
		text := tp.Text
		if msg.Role == types.RoleModel {
			text = markup.PlainText(text)
		}
		if strings.Contains(strings.ToLower(text), query) {
			return text, true
		}
	}
	return "", false
}

// snippet cuts text around the first match of query on a single line.
func snippet(text, query string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	lower := []rune(strings.ToLower(string(runes)))
	if len(lower) != len(runes) {
		runes = lower
	}
	at := strings.Index(string(lower), query)
	if at < 0 {
		return ""
	}
	start := len([]rune(string(lower)[:at]))
	end := start + len([]rune(query))

	from, to := max(0, start-snippetRadius), min(len(runes), end+snippetRadius)
	out := string(runes[from:to])
	if from > 0 {
		out = "..." + out
	}
	if to < len(runes) {
		out += "..."
	}
	return out
}
