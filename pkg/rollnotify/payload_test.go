package rollnotify

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type explodingStringer struct{}

func (explodingStringer) String() string { panic("stringer exploded") }

type brokenRequest struct{ bareRequest }

func (brokenRequest) Header() http.Header { panic("header access failed") }

func newTestBuilder(opts ...Option) *payloadBuilder {
	s := defaultSettings()
	s.Environment = "test"
	s.Host = "web-1"
	s.CodeVersion = "abc123"
	for _, opt := range opts {
		opt(&s)
	}
	b := newPayloadBuilder(s)
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	return b
}

func TestPayloadBuilder_BaseFields(t *testing.T) {
	b := newTestBuilder()

	item, err := b.build(context.Background(), report{kind: kindMessage, message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), item.Timestamp)
	assert.Equal(t, "test", item.Environment)
	assert.Equal(t, LevelError, item.Level, "messages default to error like errors do")
	assert.Equal(t, Language, item.Language)
	assert.Equal(t, "abc123", item.CodeVersion)
	assert.Equal(t, "web-1", item.Server.Host)
	assert.Positive(t, item.Server.PID)
	assert.Equal(t, NotifierName, item.Notifier.Name)
	assert.Len(t, item.UUID, 32)
}

func TestPayloadBuilder_UniqueUUIDs(t *testing.T) {
	b := newTestBuilder()
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		item, err := b.build(context.Background(), report{kind: kindMessage, message: "x"})
		require.NoError(t, err)
		assert.False(t, seen[item.UUID])
		seen[item.UUID] = true
	}
}

func TestPayloadBuilder_RejectsNilError(t *testing.T) {
	b := newTestBuilder()

	item, err := b.build(context.Background(), report{kind: kindError, op: "handle error"})

	assert.Nil(t, item)
	assert.ErrorIs(t, err, ErrNilError)
	assert.True(t, IsKind(err, KindValidation))
}

func TestPayloadBuilder_ContextSectionFailure(t *testing.T) {
	b := newTestBuilder()

	item, err := b.build(context.Background(), report{
		kind:    kindError,
		err:     NewError("boom"),
		payload: map[string]any{"context": explodingStringer{}},
	})

	require.NotNil(t, item, "base fields are still usable")
	assert.True(t, IsKind(err, KindAssembly))
	assert.Equal(t, "boom", item.Body.Trace.Exception.Message)
	assert.Equal(t, "test", item.Environment)
}

func TestPayloadBuilder_RequestSectionFailure(t *testing.T) {
	b := newTestBuilder()

	item, err := b.build(context.Background(), report{kind: kindMessage, message: "m", req: brokenRequest{}})

	require.NotNil(t, item)
	assert.True(t, IsKind(err, KindAssembly))
	assert.Contains(t, err.Error(), "request")
	assert.Nil(t, item.Request)
	assert.Equal(t, "m", item.Body.Message.Body)
}

func TestPayloadBuilder_PersonFromContext(t *testing.T) {
	b := newTestBuilder()
	ctx := WithPerson(context.Background(), &Person{ID: "ctx-user"})

	item, err := b.build(ctx, report{kind: kindMessage, message: "m"})

	require.NoError(t, err)
	assert.Equal(t, "ctx-user", item.Person.ID)
}

func TestPayloadBuilder_MessageScrubbing(t *testing.T) {
	b := newTestBuilder(WithMessageScrubbing())

	item, err := b.build(context.Background(), report{kind: kindError, err: errors.New("login failed password=hunter2")})

	require.NoError(t, err)
	assert.NotContains(t, item.Body.Trace.Exception.Message, "hunter2")
}

func TestApplyPayloadData(t *testing.T) {
	item := &Item{Level: LevelError}
	person := &Person{ID: "9"}

	applyPayloadData(item, map[string]any{
		"level":       "warn",
		"fingerprint": "fp-1",
		"person":      person,
		"custom":      "not a map",
		"server":      "ignored at encode",
	})

	assert.Equal(t, LevelWarning, item.Level)
	assert.Equal(t, "fp-1", item.Fingerprint)
	assert.Same(t, person, item.Person)
	assert.Nil(t, item.Custom)
	assert.Equal(t, "not a map", item.Extra["custom"])
	assert.Equal(t, "ignored at encode", item.Extra["server"])
}

func TestApplyPayloadData_UnknownLevelKept(t *testing.T) {
	item := &Item{}

	applyPayloadData(item, map[string]any{"level": "verbose"})

	assert.Equal(t, Level("verbose"), item.Level)
}

func TestApplyPayloadData_NilLevelKeepsDefault(t *testing.T) {
	item := &Item{Level: LevelError}

	applyPayloadData(item, map[string]any{"level": nil})

	assert.Equal(t, LevelError, item.Level)
	assert.NotContains(t, item.Extra, "level")
}

func TestIsNilError(t *testing.T) {
	var typed *TracedError
	var iface error = typed

	assert.True(t, isNilError(nil))
	assert.True(t, isNilError(iface))
	assert.False(t, isNilError(errors.New("x")))
	assert.False(t, isNilError(NewError("y")))
}

func TestSafeSection(t *testing.T) {
	err := safeSection("trace", func() error { panic("bad frame") })
	assert.EqualError(t, err, "trace: panic: bad frame")

	inner := errors.New("inner")
	err = safeSection("request", func() error { return inner })
	assert.ErrorIs(t, err, inner)

	assert.NoError(t, safeSection("ok", func() error { return nil }))
}
