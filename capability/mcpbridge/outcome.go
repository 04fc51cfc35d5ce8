package mcpbridge

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Outcome is the normalized result of a bridged capability call.
// Exactly one of Data / ErrorText is meaningful, selected by OK.
type Outcome struct {
	// OK reports whether the call succeeded.
	OK bool `json:"ok"`

	// Data holds the structured content of a successful call, or the
	// concatenated text content when no structured content was returned.
	Data any `json:"data,omitempty"`

	// ErrorText describes the failure when OK is false.
	ErrorText string `json:"error,omitempty"`
}

// AsMap renders the outcome as the plain map shape scripts consume.
// The keys match the sandbox helper accessors (ok, data, error_text).
func (o Outcome) AsMap() map[string]any {
	m := map[string]any{"ok": o.OK}
	if o.OK {
		m["data"] = o.Data
	} else {
		m["error"] = o.ErrorText
	}
	return m
}

// Failure builds a failed outcome from an error.
func Failure(err error) Outcome {
	return Outcome{OK: false, ErrorText: err.Error()}
}

// Normalize converts a raw MCP call result into an Outcome. Structured
// content wins when present; otherwise text content blocks are joined.
// A result flagged IsError becomes a failure carrying its text.
func Normalize(res *mcp.CallToolResult) Outcome {
	if res == nil {
		return Outcome{OK: false, ErrorText: "empty result from server"}
	}

	text := joinTextContent(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return Outcome{OK: false, ErrorText: text}
	}

	if res.StructuredContent != nil {
		return Outcome{OK: true, Data: res.StructuredContent}
	}
	return Outcome{OK: true, Data: text}
}

func joinTextContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
