package transcript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleUnknown   = "unknown"
)

// Message is one turn of a conversation, already decoded and non-empty.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Conversation is the normalized output shared by the HTML export extractor
// and the JSON shape normalizer.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

var (
	// ErrMarkerNotFound means the export blob has no embedded data literal.
	ErrMarkerNotFound = errors.New("export data marker not found")
	// ErrUnbalancedLiteral means the data literal never closes.
	ErrUnbalancedLiteral = errors.New("unbalanced export literal")
)

const (
	literalAnchor = "jsonData = ["
	recordAnchor  = `{"title":`
	partsAnchor   = `"parts":[`
)

// IsHTMLExport reports whether raw looks like a browser-saved HTML export
// with an embedded data literal, as opposed to a plain JSON document.
func IsHTMLExport(raw []byte) bool {
	return strings.Contains(string(raw), literalAnchor)
}

// Extractor recovers conversations from a raw chat-assistant HTML export. The
// embedded array is not guaranteed to be valid JSON, so it is never parsed as
// such: the extractor anchors on known markers and balances brackets to find
// record boundaries.
type Extractor struct {
	log *logger.Logger
}

func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{log: log.With("service", "ExportExtractor")}
}

// Extract walks raw and returns every conversation it can recover, in source
// order. A malformed record is skipped and logged; it never aborts the file.
func (e *Extractor) Extract(raw string) ([]Conversation, error) {
	start := strings.Index(raw, literalAnchor)
	if start < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMarkerNotFound, literalAnchor)
	}
	open := start + len(literalAnchor) - 1

	end, ok := FindBalancedEnd(raw, open, '[', ']')
	if !ok {
		return nil, ErrUnbalancedLiteral
	}
	literal := raw[open:end]

	starts := recordStarts(literal)
	e.log.Info("Located export literal", "literal_bytes", len(literal), "records", len(starts))

	out := make([]Conversation, 0, len(starts))
	for n, s := range starts {
		recEnd := len(literal)
		if n+1 < len(starts) {
			recEnd = starts[n+1]
		}
		conv, ok := e.parseRecord(literal[s:recEnd], n+1)
		if !ok {
			e.log.Warn("Skipping malformed export record", "record", n+1)
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func recordStarts(literal string) []int {
	var starts []int
	for i := 0; ; {
		j := strings.Index(literal[i:], recordAnchor)
		if j < 0 {
			break
		}
		starts = append(starts, i+j)
		i += j + len(recordAnchor)
	}
	return starts
}

// parseRecord pulls the title, conversation id and every message out of one
// record span. Missing fields get generated fallbacks; ok=false only when the
// record is too broken to represent at all.
func (e *Extractor) parseRecord(rec string, n int) (conv Conversation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("Record extraction panic", "record", n, "panic", r)
			ok = false
		}
	}()

	conv.Title = Decode(keyedString(rec, `"title":`))
	if strings.TrimSpace(conv.Title) == "" {
		conv.Title = fmt.Sprintf("Conversation %d", n)
	}
	conv.ID = keyedString(rec, `"conversation_id":`)
	if strings.TrimSpace(conv.ID) == "" {
		conv.ID = fmt.Sprintf("conv_%d", n)
	}

	for _, span := range messageBodies(rec) {
		msg, ok := parseMessage(span)
		if !ok {
			continue
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, true
}

// messageBodies finds every UUID-shaped key followed by an object literal and
// returns the balanced body spans in source order.
func messageBodies(rec string) []string {
	var bodies []string
	for i := 0; i+uuidKeyLen < len(rec); i++ {
		if rec[i] != '"' || !isUUID(rec[i+1:i+1+uuidLen]) || rec[i+1+uuidLen] != '"' {
			continue
		}
		j := i + uuidKeyLen // past `"<uuid>"`
		if j >= len(rec) || rec[j] != ':' {
			continue
		}
		j++
		for j < len(rec) && rec[j] == ' ' {
			j++
		}
		if j >= len(rec) || rec[j] != '{' {
			continue
		}
		end, ok := FindBalancedEnd(rec, j, '{', '}')
		if !ok {
			continue
		}
		bodies = append(bodies, rec[j+1:end-1])
		i = end - 1
	}
	return bodies
}

func parseMessage(body string) (Message, bool) {
	role := keyedString(body, `"role":`)
	if role == "" {
		role = RoleUnknown
	}
	text, ok := firstPart(body)
	if !ok {
		return Message{}, false
	}
	return Message{Role: role, Text: text}, true
}

// firstPart extracts the message text: the parts array is bounded with a
// balanced scan, every quoted segment inside is decoded, and the first
// non-empty one wins. ok=false when no segment survives decoding.
func firstPart(body string) (string, bool) {
	p := strings.Index(body, partsAnchor)
	if p < 0 {
		return "", false
	}
	open := p + len(partsAnchor) - 1
	end, ok := FindBalancedEnd(body, open, '[', ']')
	if !ok {
		end = len(body)
	}
	span := body[open:end]

	for i := 0; i < len(span); {
		q := strings.IndexByte(span[i:], '"')
		if q < 0 {
			break
		}
		raw, next, ok := ScanQuotedString(span, i+q)
		if !ok {
			break
		}
		decoded := Decode(raw)
		if strings.TrimSpace(decoded) != "" {
			return decoded, true
		}
		i = next
	}
	return "", false
}

// keyedString returns the decoded-later raw value of `"key": "value"` style
// fields, or "" when the key is absent or not followed by a string.
func keyedString(s, key string) string {
	i := strings.Index(s, key)
	if i < 0 {
		return ""
	}
	i += len(key)
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i >= len(s) || s[i] != '"' {
		return ""
	}
	val, _, ok := ScanQuotedString(s, i)
	if !ok {
		return ""
	}
	return val
}

const (
	uuidLen    = 36
	uuidKeyLen = uuidLen + 2 // quotes included
)

func isUUID(s string) bool {
	if len(s) != uuidLen {
		return false
	}
	for i := 0; i < uuidLen; i++ {
		c := s[i]
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
			continue
		}
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
