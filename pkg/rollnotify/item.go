// item.go defines the Item payload and its wire representation.

package rollnotify

import (
	"encoding/json"
	"fmt"
)

// Language is the language tag attached to every item.
const Language = "go"

// reservedKeys are never overwritten by caller-supplied extras.
var reservedKeys = map[string]bool{
	"body":         true,
	"timestamp":    true,
	"environment":  true,
	"level":        true,
	"language":     true,
	"framework":    true,
	"uuid":         true,
	"notifier":     true,
	"server":       true,
	"code_version": true,
}

// Item is one reportable unit as sent to the ingestion API.
type Item struct {
	// Identity fields

	// Timestamp is the report time in unix seconds.
	Timestamp int64 `json:"timestamp"`

	// UUID is 16 random bytes, hex encoded.
	UUID string `json:"uuid"`

	// Environment and runtime

	Environment string       `json:"environment"`
	Level       Level        `json:"level"`
	Language    string       `json:"language"`
	Framework   string       `json:"framework,omitempty"`
	Notifier    NotifierInfo `json:"notifier"`
	Server      Server       `json:"server"`
	CodeVersion string       `json:"code_version,omitempty"`

	// Body holds exactly one of message, trace or trace_chain.
	Body Body `json:"body"`

	// Optional context

	Request     *RequestData   `json:"request,omitempty"`
	Person      *Person        `json:"person,omitempty"`
	Context     string         `json:"context,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Title       string         `json:"title,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`

	// Extra holds free-form payload data merged into the top level of the
	// encoded item. Keys already present in the item are left untouched.
	Extra map[string]any `json:"-"`

	// ContextID links the item to a cxdb context. It is not sent on the wire.
	ContextID *uint64 `json:"-"`
}

// NotifierInfo identifies this library in the payload.
type NotifierInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server describes the reporting process.
type Server struct {
	Host   string   `json:"host,omitempty"`
	Argv   []string `json:"argv,omitempty"`
	PID    int      `json:"pid"`
	Branch string   `json:"branch,omitempty"`
	Root   string   `json:"root,omitempty"`
}

// Person identifies the user affected by an item.
type Person struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Body is the payload body. Exactly one field is set.
type Body struct {
	Message    *Message `json:"message,omitempty"`
	Trace      *Trace   `json:"trace,omitempty"`
	TraceChain []Trace  `json:"trace_chain,omitempty"`
}

// Message is a plain-text report.
type Message struct {
	Body string `json:"body"`
}

// Trace is one parsed exception with its frames.
type Trace struct {
	Frames    []Frame   `json:"frames"`
	Exception Exception `json:"exception"`
}

// Exception names the error class and message of a trace.
type Exception struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// Frame is a single stack frame. Frames are ordered outermost call first,
// so the last frame is where the error was raised.
type Frame struct {
	Method   string        `json:"method"`
	Filename string        `json:"filename"`
	Lineno   int           `json:"lineno"`
	Colno    int           `json:"colno,omitempty"`
	Code     string        `json:"code,omitempty"`
	Context  *FrameContext `json:"context,omitempty"`
}

// FrameContext holds source lines around Frame.Code.
type FrameContext struct {
	Pre  []string `json:"pre"`
	Post []string `json:"post"`
}

// ExceptionRecord is the parser output for one error in a chain.
type ExceptionRecord struct {
	Class   string
	Message string
	Frames  []Frame
}

// Trace converts the record to its wire form.
func (r ExceptionRecord) Trace() Trace {
	frames := r.Frames
	if frames == nil {
		frames = []Frame{}
	}
	return Trace{
		Frames:    frames,
		Exception: Exception{Class: r.Class, Message: r.Message},
	}
}

// bodyFromChain builds a trace body for one record and a trace_chain body
// for several.
func bodyFromChain(chain []ExceptionRecord) Body {
	if len(chain) == 1 {
		t := chain[0].Trace()
		return Body{Trace: &t}
	}
	traces := make([]Trace, len(chain))
	for i, r := range chain {
		traces[i] = r.Trace()
	}
	return Body{TraceChain: traces}
}

type itemAlias Item

// MarshalJSON encodes the item and merges Extra without overwriting.
func (i *Item) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal((*itemAlias)(i))
	if err != nil {
		return nil, err
	}
	if len(i.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range i.Extra {
		if reservedKeys[k] {
			continue
		}
		if _, exists := merged[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode extra %q: %w", k, err)
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// RequestData describes the HTTP request an item was reported from.
type RequestData struct {
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	GET     map[string]any    `json:"GET,omitempty"`
	Body    string            `json:"body,omitempty"`
	UserIP  string            `json:"user_ip,omitempty"`

	// Params holds parsed body parameters. They are encoded under the
	// request method, e.g. "POST".
	Params map[string]any `json:"-"`
}

type requestDataAlias RequestData

// MarshalJSON encodes the request and places Params under the method key.
func (r *RequestData) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal((*requestDataAlias)(r))
	if err != nil {
		return nil, err
	}
	if len(r.Params) == 0 || r.Method == "" {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(r.Params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", r.Method, err)
	}
	merged[r.Method] = raw
	return json.Marshal(merged)
}
