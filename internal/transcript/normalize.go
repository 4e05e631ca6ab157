package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// exportShape is the closed set of JSON input shapes accepted by Normalize.
type exportShape int

const (
	shapeEnvelope exportShape = iota // {"conversations": [...]}
	shapeConversationList            // [{"title": ..., "messages": [...]}, ...]
	shapeMessageList                 // [{"role": ..., "content": ...}, ...]
)

type rawMessage struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Text    string          `json:"text"`
	Parts   []json.RawMessage `json:"parts"`
}

type rawConversation struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Title          string       `json:"title"`
	Messages       []rawMessage `json:"messages"`
}

type rawEnvelope struct {
	Conversations []rawConversation `json:"conversations"`
}

// Normalizer maps the accepted JSON export shapes onto the Conversation
// representation used by the rest of the pipeline. The shape is detected once
// at the entry point; everything downstream sees one structure.
type Normalizer struct {
	log *logger.Logger
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{log: log.With("service", "ExportNormalizer")}
}

// Normalize parses data and returns conversations in input order.
func (n *Normalizer) Normalize(data []byte) ([]Conversation, error) {
	shape, err := detectShape(data)
	if err != nil {
		return nil, err
	}

	switch shape {
	case shapeEnvelope:
		var env rawEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode export envelope: %w", err)
		}
		return n.fromConversations(env.Conversations), nil
	case shapeConversationList:
		var convs []rawConversation
		if err := json.Unmarshal(data, &convs); err != nil {
			return nil, fmt.Errorf("decode conversation list: %w", err)
		}
		return n.fromConversations(convs), nil
	default:
		var msgs []rawMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		conv := Conversation{ID: "conv_1", Title: "Conversation 1"}
		for _, m := range msgs {
			if msg, ok := normalizeMessage(m); ok {
				conv.Messages = append(conv.Messages, msg)
			}
		}
		return []Conversation{conv}, nil
	}
}

func detectShape(data []byte) (exportShape, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty export document")
	}
	switch trimmed[0] {
	case '{':
		return shapeEnvelope, nil
	case '[':
		var probe []map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return 0, fmt.Errorf("decode export list: %w", err)
		}
		for _, el := range probe {
			if _, ok := el["messages"]; ok {
				return shapeConversationList, nil
			}
			if _, ok := el["role"]; ok {
				return shapeMessageList, nil
			}
		}
		return shapeConversationList, nil
	default:
		return 0, fmt.Errorf("unrecognized export document shape")
	}
}

func (n *Normalizer) fromConversations(convs []rawConversation) []Conversation {
	out := make([]Conversation, 0, len(convs))
	for i, rc := range convs {
		conv := Conversation{ID: rc.ID, Title: rc.Title}
		if conv.ID == "" {
			conv.ID = rc.ConversationID
		}
		if conv.ID == "" {
			conv.ID = fmt.Sprintf("conv_%d", i+1)
		}
		if strings.TrimSpace(conv.Title) == "" {
			conv.Title = fmt.Sprintf("Conversation %d", i+1)
		}
		for _, m := range rc.Messages {
			if msg, ok := normalizeMessage(m); ok {
				conv.Messages = append(conv.Messages, msg)
			}
		}
		out = append(out, conv)
	}
	return out
}

// normalizeMessage picks the message text from content, text or the first
// non-empty part, decodes it, and drops empty results.
func normalizeMessage(m rawMessage) (Message, bool) {
	text := m.Content
	if text == "" {
		text = m.Text
	}
	if text == "" {
		for _, p := range m.Parts {
			var s string
			if err := json.Unmarshal(p, &s); err != nil {
				continue
			}
			if strings.TrimSpace(s) != "" {
				text = s
				break
			}
		}
	}
	text = Decode(text)
	if strings.TrimSpace(text) == "" {
		return Message{}, false
	}
	role := m.Role
	if role == "" {
		role = RoleUnknown
	}
	return Message{Role: role, Text: text}, true
}
