package rollnotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func traceItem(class, msg string, lines ...int) *Item {
	frames := []Frame{
		{Method: "main.main", Filename: "/app/main.go", Lineno: 10},
		{Method: "main.helper", Filename: "/app/main.go", Lineno: 30},
		{Method: "main.doSomething", Filename: "/app/main.go", Lineno: 42},
	}
	for i, l := range lines {
		frames[i].Lineno = l
	}
	return &Item{
		Level: LevelError,
		Body:  Body{Trace: &Trace{Frames: frames, Exception: Exception{Class: class, Message: msg}}},
	}
}

func TestFingerprint_Stability(t *testing.T) {
	item := traceItem("*net.OpError", "connection timed out")

	fp1 := Fingerprint(item)
	fp2 := Fingerprint(item)

	if fp1 != fp2 {
		t.Errorf("Same item produced different fingerprints: %q vs %q", fp1, fp2)
	}
	if len(fp1) != 32 {
		t.Errorf("Fingerprint length = %d, want 32", len(fp1))
	}
}

func TestFingerprint_IgnoresLineNumbersAndMessage(t *testing.T) {
	a := traceItem("*net.OpError", "dial 10.0.0.1: timeout", 10, 30, 42)
	b := traceItem("*net.OpError", "dial 10.0.0.2: timeout", 11, 99, 7)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DifferentClass(t *testing.T) {
	a := traceItem("*net.OpError", "timeout")
	b := traceItem("*os.PathError", "timeout")

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_Message(t *testing.T) {
	info := &Item{Level: LevelInfo, Body: Body{Message: &Message{Body: "deploy finished"}}}
	warn := &Item{Level: LevelWarning, Body: Body{Message: &Message{Body: "deploy finished"}}}

	assert.NotEqual(t, Fingerprint(info), Fingerprint(warn))
	assert.Len(t, Fingerprint(info), 32)
}

func TestFingerprint_EmptyBody(t *testing.T) {
	assert.Empty(t, Fingerprint(&Item{}))
	assert.Empty(t, Fingerprint(nil))
}
