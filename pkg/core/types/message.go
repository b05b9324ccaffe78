package types

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MessageKind marks placeholder messages that are not part of the conversation.
type MessageKind string

const (
	KindNormal    MessageKind = ""
	KindToolIntro MessageKind = "tool-intro"
)

// Message represents a single message in a chat session.
type Message struct {
	Role    Role
	Parts   []Part
	Sources []GroundingSource
	Kind    MessageKind
}

// GroundingSource is a web citation attached to a grounded reply.
type GroundingSource struct {
	URI   string
	Title string
}

type wireSource struct {
	Web *wireWeb `json:"web,omitempty"`
}

type wireWeb struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

type wireMessage struct {
	Role    Role              `json:"role"`
	Parts   []json.RawMessage `json:"parts"`
	Sources []wireSource      `json:"sources,omitempty"`
	Type    MessageKind       `json:"type,omitempty"`
}

// MarshalJSON writes the persisted layout.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Role:  m.Role,
		Parts: make([]json.RawMessage, 0, len(m.Parts)),
		Type:  m.Kind,
	}
	for i, p := range m.Parts {
		b, err := MarshalPart(p)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		w.Parts = append(w.Parts, b)
	}
	for _, s := range m.Sources {
		w.Sources = append(w.Sources, wireSource{Web: &wireWeb{URI: s.URI, Title: s.Title}})
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the persisted layout.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Role {
	case RoleUser, RoleModel:
	default:
		return fmt.Errorf("unknown message role %q", w.Role)
	}

	parts := make([]Part, 0, len(w.Parts))
	for i, raw := range w.Parts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}

	var sources []GroundingSource
	for _, s := range w.Sources {
		if s.Web == nil {
			continue
		}
		sources = append(sources, GroundingSource{URI: s.Web.URI, Title: s.Web.Title})
	}

	*m = Message{Role: w.Role, Parts: parts, Sources: sources, Kind: w.Type}
	return nil
}

// Clone returns a copy whose slices do not alias m.
func (m Message) Clone() Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	out.Sources = append([]GroundingSource(nil), m.Sources...)
	return out
}

// CloneMessages copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// TextMessage builds a message with a single text part.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// CitedSources returns the sources that carry a URI.
func CitedSources(sources []GroundingSource) []GroundingSource {
	var out []GroundingSource
	for _, s := range sources {
		if s.URI != "" {
			out = append(out, s)
		}
	}
	return out
}
