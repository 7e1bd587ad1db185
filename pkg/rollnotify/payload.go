// payload.go assembles items from errors, messages and request context.

package rollnotify

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type reportKind int

const (
	kindMessage reportKind = iota
	kindError
)

// report is one call into the notifier before assembly.
type report struct {
	kind    reportKind
	op      string
	err     error
	message string
	level   Level
	req     Request
	payload map[string]any
	stack   []uintptr
}

// payloadBuilder turns reports into items using fixed settings.
type payloadBuilder struct {
	settings Settings
	parser   *StackParser
	scrubber *Scrubber
	now      func() time.Time
}

func newPayloadBuilder(s Settings) *payloadBuilder {
	return &payloadBuilder{
		settings: s,
		parser:   NewStackParser(s.ContextLines),
		scrubber: NewScrubber(ScrubberConfig{
			Fields:        s.ScrubFields,
			Headers:       s.ScrubHeaders,
			ScrubMessages: s.ScrubMessages,
		}),
		now: time.Now,
	}
}

// build returns the item and any error from optional sections. A nil item
// means the report was rejected.
func (b *payloadBuilder) build(ctx context.Context, r report) (*Item, error) {
	if r.kind == kindError && isNilError(r.err) {
		return nil, &Error{Op: r.op, Kind: KindValidation, Err: ErrNilError}
	}

	item := b.baseItem(r)

	var sectionErrs []error
	if err := safeSection("payload data", func() error {
		applyPayloadData(item, r.payload)
		return nil
	}); err != nil {
		sectionErrs = append(sectionErrs, err)
	}
	switch r.kind {
	case kindMessage:
		item.Body = Body{Message: &Message{Body: r.message}}
	case kindError:
		if err := safeSection("trace", func() error {
			item.Body = bodyFromChain(b.parser.ParseChain(r.err, r.stack))
			return nil
		}); err != nil {
			item.Body = Body{Trace: &Trace{
				Frames:    []Frame{},
				Exception: Exception{Class: fmt.Sprintf("%T", r.err), Message: noMessage},
			}}
			sectionErrs = append(sectionErrs, err)
		}
	}

	if r.req != nil {
		if err := safeSection("request", func() error {
			return b.addRequestData(item, r.req)
		}); err != nil {
			sectionErrs = append(sectionErrs, err)
		}
	}

	if item.Person == nil {
		if p, ok := PersonFromContext(ctx); ok {
			item.Person = p
		}
	}
	if id, ok := ContextIDFromContext(ctx); ok {
		item.ContextID = &id
	}
	if b.settings.Fingerprinting && item.Fingerprint == "" {
		item.Fingerprint = Fingerprint(item)
	}
	b.scrubber.ScrubItem(item)

	if len(sectionErrs) > 0 {
		return item, &Error{Op: r.op, Kind: KindAssembly, Err: errors.Join(sectionErrs...)}
	}
	return item, nil
}

func (b *payloadBuilder) baseItem(r report) *Item {
	level := r.level
	if level == "" {
		level = LevelError
	}
	id := uuid.New()
	return &Item{
		Timestamp:   b.now().Unix(),
		UUID:        hex.EncodeToString(id[:]),
		Environment: b.settings.Environment,
		Level:       level,
		Language:    Language,
		Framework:   b.settings.Framework,
		Notifier:    NotifierInfo{Name: NotifierName, Version: Version},
		Server:      captureServer(&b.settings),
		CodeVersion: b.settings.CodeVersion,
	}
}

func (b *payloadBuilder) addRequestData(item *Item, req Request) error {
	if b.settings.AddRequestData != nil {
		return b.settings.AddRequestData(item, req)
	}
	item.Request = BuildRequestData(req, b.scrubber)
	if item.Context == "" {
		item.Context = routeOf(req)
	}
	if item.Person == nil {
		item.Person = resolvePerson(req)
	}
	return nil
}

// applyPayloadData copies caller data into the item. Known keys set typed
// fields; everything else is merged at encode time without overwriting.
func applyPayloadData(item *Item, payload map[string]any) {
	for k, v := range payload {
		switch k {
		case "level":
			if v == nil {
				continue
			}
			if s := fmt.Sprint(v); s != "" {
				if l, err := ParseLevel(s); err == nil {
					item.Level = l
				} else {
					item.Level = Level(s)
				}
			}
		case "fingerprint":
			item.Fingerprint = fmt.Sprint(v)
		case "title":
			item.Title = fmt.Sprint(v)
		case "context":
			item.Context = contextString(v)
		case "custom":
			if m, ok := v.(map[string]any); ok {
				item.Custom = m
			} else {
				setExtra(item, k, v)
			}
		case "person":
			if p, ok := v.(*Person); ok {
				item.Person = p
			} else {
				setExtra(item, k, v)
			}
		default:
			setExtra(item, k, v)
		}
	}
}

func setExtra(item *Item, k string, v any) {
	if item.Extra == nil {
		item.Extra = make(map[string]any)
	}
	item.Extra[k] = v
}

// safeSection runs fn, converting a panic into an error.
func safeSection(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// isNilError reports whether err is nil or a typed nil.
func isNilError(err error) bool {
	if err == nil {
		return true
	}
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
