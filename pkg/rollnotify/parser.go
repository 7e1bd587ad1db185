// parser.go turns errors and raw stack text into ordered frames with source
// context. Parsing never fails: anything it cannot read is skipped.

package rollnotify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

const (
	// DefaultContextLines is the number of source lines kept on each side of a frame.
	DefaultContextLines = 3

	noMessage     = "<no message>"
	unknownMethod = "<unknown>"
	templateFrame = "<template>"
	maxChainDepth = 16
)

var (
	goroutineHeader = regexp.MustCompile(`^goroutine \d+ \[.*\]:$`)
	goFileLine      = regexp.MustCompile(`^\s+(.+?):(\d+)(?: \+0x[0-9a-fA-F]+)?$`)
	v8FrameLine     = regexp.MustCompile(`^\s*at (?:(.+(?: \[\w\s+\])?) )?\(?(.+?)(?::(\d+):(\d+))?\)?$`)

	goTemplateMessage  = regexp.MustCompile(`(?s)^template: ([^:]+):(\d+)(?::(\d+))?: (.*)$`)
	templateDumpHeader = regexp.MustCompile(`^(.+):(\d+)$`)
	templateDumpLine   = regexp.MustCompile(`^\s*(>)?\s*(\d+)\| ?(.*)$`)

	goroot = filepath.ToSlash(runtime.GOROOT())
)

// StackTextProvider is implemented by errors that only have a textual stack,
// such as a recovered panic carrying debug.Stack output.
type StackTextProvider interface {
	StackText() string
}

type callersProvider interface {
	Callers() []uintptr
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// StackParser extracts frames from errors.
type StackParser struct {
	contextLines int
	readFile     func(string) ([]byte, error)
}

// NewStackParser returns a parser keeping contextLines source lines around
// each application frame. A negative value disables source context.
func NewStackParser(contextLines int) *StackParser {
	return &StackParser{contextLines: contextLines, readFile: os.ReadFile}
}

// ParseException parses err alone, ignoring its causes.
func (p *StackParser) ParseException(err error) (rec ExceptionRecord) {
	rec = ExceptionRecord{Class: "<nil>", Message: noMessage}
	if err == nil {
		return rec
	}
	defer func() {
		if recover() != nil {
			rec.Frames = nil
		}
	}()
	s := p.session()
	return s.record(err, nil)
}

// ParseChain parses err and its causes, outermost wrapper first. When no
// error in the chain carries a stack, fallback is attached to the first
// record.
func (p *StackParser) ParseChain(err error, fallback []uintptr) (chain []ExceptionRecord) {
	if err == nil {
		return []ExceptionRecord{{Class: "<nil>", Message: noMessage}}
	}
	defer func() {
		if recover() != nil && len(chain) == 0 {
			chain = []ExceptionRecord{{Class: fmt.Sprintf("%T", err), Message: noMessage}}
		}
	}()

	s := p.session()
	var carried []uintptr
	for depth, cur := 0, err; cur != nil && depth < maxChainDepth; depth, cur = depth+1, nextCause(cur) {
		next := nextCause(cur)
		// Pure stack annotators, such as pkg/errors.WithStack, hand their
		// stack to the error they wrap instead of producing a record.
		if next != nil && cur.Error() == next.Error() {
			if pcs := pcsOf(cur); pcs != nil && carried == nil {
				carried = pcs
			}
			continue
		}
		chain = append(chain, s.record(cur, carried))
		carried = nil
	}

	if len(chain) == 0 {
		chain = append(chain, s.record(err, nil))
	}
	if len(fallback) > 0 && !anyFrames(chain) {
		chain[0].Frames = append(s.framesFromPCs(fallback), chain[0].Frames...)
	}
	return chain
}

// ParseStack parses Go (debug.Stack) or V8-style stack text. The first line is
// treated as a header when it is not itself a frame.
func (p *StackParser) ParseStack(text string) (frames []Frame) {
	defer func() {
		if recover() != nil {
			frames = nil
		}
	}()
	return p.session().parseText(text)
}

// FramesFromCallers converts program counters from runtime.Callers.
func (p *StackParser) FramesFromCallers(pcs []uintptr) []Frame {
	return p.session().framesFromPCs(pcs)
}

// parseSession caches file contents for the duration of one parse.
type parseSession struct {
	p     *StackParser
	files map[string][]string
}

func (p *StackParser) session() *parseSession {
	return &parseSession{p: p, files: make(map[string][]string)}
}

func (s *parseSession) record(err error, carried []uintptr) ExceptionRecord {
	rec := ExceptionRecord{
		Class:   className(err),
		Message: ownMessage(err),
	}

	switch {
	case carried != nil:
		rec.Frames = s.framesFromPCs(carried)
	case pcsOf(err) != nil:
		rec.Frames = s.framesFromPCs(pcsOf(err))
	default:
		if tp, ok := err.(StackTextProvider); ok {
			rec.Frames = s.parseText(tp.StackText())
		}
	}

	if frame, rest, ok := s.templateFrame(rec.Message); ok {
		rec.Frames = append(rec.Frames, frame)
		rec.Message = rest
		if rec.Message == "" {
			rec.Message = noMessage
		}
	}
	return rec
}

func pcsOf(err error) []uintptr {
	switch e := err.(type) {
	case callersProvider:
		return e.Callers()
	case stackTracer:
		st := e.StackTrace()
		pcs := make([]uintptr, len(st))
		for i, f := range st {
			pcs[i] = uintptr(f)
		}
		return pcs
	}
	return nil
}

func nextCause(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if inner != nil {
				return inner
			}
		}
	}
	return nil
}

func anyFrames(chain []ExceptionRecord) bool {
	for _, r := range chain {
		if len(r.Frames) > 0 {
			return true
		}
	}
	return false
}

func className(err error) string {
	if c, ok := err.(interface{ ClassName() string }); ok {
		if name := c.ClassName(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", err)
}

// ownMessage returns err's message without the text of its cause.
func ownMessage(err error) string {
	var msg string
	if m, ok := err.(interface{ Message() string }); ok {
		msg = m.Message()
	} else {
		msg = err.Error()
		if cause := errors.Unwrap(err); cause != nil {
			msg = strings.TrimSuffix(msg, ": "+cause.Error())
		}
	}
	if msg == "" {
		return noMessage
	}
	return msg
}

func (s *parseSession) framesFromPCs(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}
	var out []Frame
	iter := runtime.CallersFrames(pcs)
	for {
		f, more := iter.Next()
		if f.Function != "" || f.File != "" {
			method := f.Function
			if method == "" {
				method = unknownMethod
			}
			out = append(out, s.enrich(Frame{Method: method, Filename: f.File, Lineno: f.Line}))
		}
		if !more {
			break
		}
	}
	reverseFrames(out)
	return out
}

func (s *parseSession) parseText(text string) []Frame {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 0 && isStackHeader(lines) {
		lines = lines[1:]
	}

	var frames []Frame
	pending := ""
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := v8FrameLine.FindStringSubmatch(line); m != nil {
			frames = append(frames, s.enrich(v8Frame(m)))
			pending = ""
			continue
		}
		if pending != "" {
			if m := goFileLine.FindStringSubmatch(line); m != nil {
				lineno, _ := strconv.Atoi(m[2])
				frames = append(frames, s.enrich(Frame{Method: pending, Filename: m[1], Lineno: lineno}))
				pending = ""
				continue
			}
		}
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " ") {
			pending = goFuncName(line)
		}
	}
	reverseFrames(frames)
	return frames
}

func isStackHeader(lines []string) bool {
	first := lines[0]
	if goroutineHeader.MatchString(strings.TrimSpace(first)) {
		return true
	}
	if v8FrameLine.MatchString(first) {
		return false
	}
	// A Go function line is followed by its tab-indented file line.
	if len(lines) > 1 && goFileLine.MatchString(lines[1]) && !strings.HasPrefix(first, "\t") {
		return false
	}
	return true
}

func v8Frame(m []string) Frame {
	method := m[1]
	if method == "" {
		method = unknownMethod
	}
	lineno, _ := strconv.Atoi(m[3])
	colno, _ := strconv.Atoi(m[4])
	return Frame{Method: method, Filename: m[2], Lineno: lineno, Colno: colno}
}

func goFuncName(line string) string {
	line = strings.TrimSpace(line)
	if name, ok := strings.CutPrefix(line, "created by "); ok {
		if i := strings.Index(name, " in goroutine "); i >= 0 {
			name = name[:i]
		}
		return name
	}
	if strings.HasSuffix(line, ")") {
		if i := strings.LastIndex(line, "("); i > 0 {
			return line[:i]
		}
	}
	return line
}

func reverseFrames(frames []Frame) {
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
}

// isAppSource reports whether a frame points at application code whose
// source is worth reading.
func isAppSource(f Frame) bool {
	name := f.Filename
	if name == "" {
		return false
	}
	if !strings.HasPrefix(name, "/") && !strings.HasPrefix(name, ".") && !filepath.IsAbs(name) {
		return false
	}
	if goroot != "" && goroot != "." && strings.HasPrefix(filepath.ToSlash(name), goroot+"/") {
		return false
	}
	for _, prefix := range []string{"runtime.", "runtime/", "testing."} {
		if strings.HasPrefix(f.Method, prefix) {
			return false
		}
	}
	return true
}

func (s *parseSession) enrich(f Frame) Frame {
	if s.p.contextLines < 0 || !isAppSource(f) {
		return f
	}
	lines := s.source(f.Filename)
	if f.Lineno < 1 || f.Lineno > len(lines) {
		return f
	}

	n := s.p.contextLines
	start := max(0, f.Lineno-1-n)
	end := min(len(lines), f.Lineno+n)

	f.Code = lines[f.Lineno-1]
	f.Context = &FrameContext{
		Pre:  append([]string{}, lines[start:f.Lineno-1]...),
		Post: append([]string{}, lines[f.Lineno:end]...),
	}
	return f
}

// source returns the lines of a file, caching misses as nil.
func (s *parseSession) source(name string) []string {
	if lines, ok := s.files[name]; ok {
		return lines
	}
	data, err := s.p.readFile(name)
	if err != nil {
		s.files[name] = nil
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	s.files[name] = lines
	return lines
}

// templateFrame extracts a synthetic frame from a template error message and
// returns the message with the frame text removed.
func (s *parseSession) templateFrame(msg string) (Frame, string, bool) {
	if m := goTemplateMessage.FindStringSubmatch(msg); m != nil {
		lineno, _ := strconv.Atoi(m[2])
		colno, _ := strconv.Atoi(m[3])
		return Frame{Method: templateFrame, Filename: m[1], Lineno: lineno, Colno: colno}, strings.TrimSpace(m[4]), true
	}
	return parseTemplateDump(msg)
}

// parseTemplateDump handles messages of the form
//
//	NAME:LINE
//	    1| source
//	  > 2| failing source
//	    3| source
//
//	message
func parseTemplateDump(msg string) (Frame, string, bool) {
	lines := strings.Split(msg, "\n")
	if len(lines) < 2 {
		return Frame{}, msg, false
	}
	head := templateDumpHeader.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if head == nil {
		return Frame{}, msg, false
	}
	lineno, _ := strconv.Atoi(head[2])

	frame := Frame{Method: templateFrame, Filename: head[1], Lineno: lineno}
	ctx := &FrameContext{Pre: []string{}, Post: []string{}}
	marked := false
	i := 1
	for ; i < len(lines); i++ {
		m := templateDumpLine.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		switch {
		case m[1] == ">":
			frame.Code = m[3]
			marked = true
		case marked:
			ctx.Post = append(ctx.Post, m[3])
		default:
			ctx.Pre = append(ctx.Pre, m[3])
		}
	}
	if !marked {
		return Frame{}, msg, false
	}
	frame.Context = ctx
	return frame, strings.TrimSpace(strings.Join(lines[i:], "\n")), true
}
