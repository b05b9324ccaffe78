package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/markup"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Tool is a preset chat opened from the tools menu.
type Tool struct {
	ID       string
	Title    string
	Intro    string
	Starters []Starter
}

// Starter is a suggested first prompt. Label is the short form shown in menus.
type Starter struct {
	Label  string
	Prompt string
}

// BookWriter helps plan, draft and publish a book.
var BookWriter = Tool{
	ID:    "book-writer",
	Title: "AI Book Writing",
	Intro: "Helping you write your book, from idea to publication.",
	Starters: []Starter{
		{Label: "Let's start my book! Ask for the initial details...", Prompt: "Let's start my book! Ask me for the initial details like title, genre, characters, and tone."},
		{Label: "Help me write a chapter", Prompt: "Can you help me write the first chapter of a sci-fi mystery?"},
		{Label: "Steps to publish a book", Prompt: "What are the essential steps to publishing a book?"},
		{Label: "Brainstorm fantasy ideas", Prompt: "Give me some creative ideas for a fantasy novel."},
	},
}

var tools = map[string]Tool{BookWriter.ID: BookWriter}

// LookupTool finds a tool by id.
func LookupTool(id string) (Tool, bool) {
	t, ok := tools[strings.ToLower(strings.TrimSpace(id))]
	return t, ok
}

// IntroMessage is the placeholder shown until the first turn.
func (t Tool) IntroMessage() types.Message {
	var b strings.Builder
	b.WriteString("**" + t.Title + "**\n\n" + t.Intro + "\n\n")
	for _, s := range t.Starters {
		fmt.Fprintf(&b, "- **%s**: %s\n", s.Label, s.Prompt)
	}
	msg := types.TextMessage(types.RoleModel, markup.Render(b.String()))
	msg.Kind = types.KindToolIntro
	return msg
}

// CreateToolChat opens a new session for the tool with id.
func (s *Store) CreateToolChat(ctx context.Context, id string) (string, error) {
	tool, ok := LookupTool(id)
	if !ok {
		return "", core.NewInvalidRequestError(fmt.Sprintf("unknown tool %q", id))
	}
	return s.create(ctx, types.DefaultModel, tool.Title, []types.Message{tool.IntroMessage()})
}
