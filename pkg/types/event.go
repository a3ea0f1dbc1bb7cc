// Package types defines the shared data model for the Atrium server.
package types

// Event is one authored unit of conversation history. The stored form is
// plain JSON; see internal/session for the codec.
type Event struct {
	Author  string   `json:"author"`
	Content *Content `json:"content"`
}

// Content carries the role-tagged parts of an event.
type Content struct {
	Role  string `json:"role"` // "user" | "model" | "tool"
	Parts []Part `json:"parts"`
}

// Part is a union: exactly one of Text, FunctionCall or FunctionResponse
// is set. Empty fields are omitted from the stored record so the union
// tag is the present key.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// FunctionCall is a request by the assistant to invoke a named tool.
// ID is the correlation token linking the call to its response; some
// sources omit it, so it serializes only when present.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse is the result of executing a tool call. Response must
// be JSON-serializable by the time the event is stored; the codec
// normalizes it.
type FunctionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Response any    `json:"response"`
}

// NewTextEvent builds a single-part text event.
func NewTextEvent(author, role, text string) *Event {
	return &Event{
		Author: author,
		Content: &Content{
			Role:  role,
			Parts: []Part{{Text: text}},
		},
	}
}

// Text concatenates all text parts of the event.
func (e *Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var out string
	for _, p := range e.Content.Parts {
		out += p.Text
	}
	return out
}

// FunctionCalls returns every tool-call request part of the event.
func (e *Event) FunctionCalls() []*FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []*FunctionCall
	for _, p := range e.Content.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns every tool-result part of the event.
func (e *Event) FunctionResponses() []*FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var resps []*FunctionResponse
	for _, p := range e.Content.Parts {
		if p.FunctionResponse != nil {
			resps = append(resps, p.FunctionResponse)
		}
	}
	return resps
}
