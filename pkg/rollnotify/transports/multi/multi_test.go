package multi

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// mockTransport tracks calls and can return errors.
type mockTransport struct {
	mu       sync.Mutex
	batches  [][]*rollnotify.Item
	resp     *rollnotify.Response
	postErr  error
	closeErr error
	closed   bool
}

func (m *mockTransport) PostItems(_ context.Context, _ string, items []*rollnotify.Item) (*rollnotify.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return nil, m.postErr
	}
	m.batches = append(m.batches, items)
	if m.resp != nil {
		return m.resp, nil
	}
	return &rollnotify.Response{}, nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *mockTransport) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func TestMulti_PostItems_CallsAll(t *testing.T) {
	t1, t2, t3 := &mockTransport{}, &mockTransport{}, &mockTransport{}
	multi := New(t1, t2, t3)

	_, err := multi.PostItems(context.Background(), "tok", []*rollnotify.Item{{UUID: "u-1"}})
	require.NoError(t, err)

	for i, tr := range []*mockTransport{t1, t2, t3} {
		if got := tr.batchCount(); got != 1 {
			t.Errorf("transport %d received %d batches, want 1", i, got)
		}
	}
}

func TestMulti_PostItems_ContinuesOnError(t *testing.T) {
	errFirst := errors.New("first failed")
	errThird := errors.New("third failed")
	t1 := &mockTransport{postErr: errFirst}
	t2 := &mockTransport{resp: &rollnotify.Response{Message: "from second"}}
	t3 := &mockTransport{postErr: errThird}

	resp, err := New(t1, t2, t3).PostItems(context.Background(), "tok", []*rollnotify.Item{{}})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errThird)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindTransport))
	assert.Equal(t, 1, t2.batchCount())
	require.NotNil(t, resp)
	assert.Equal(t, "from second", resp.Message)
}

func TestMulti_PostItems_FirstResponseWins(t *testing.T) {
	t1 := &mockTransport{resp: &rollnotify.Response{Message: "one"}}
	t2 := &mockTransport{resp: &rollnotify.Response{Message: "two"}}

	resp, err := New(t1, t2).PostItems(context.Background(), "tok", nil)

	require.NoError(t, err)
	assert.Equal(t, "one", resp.Message)
}

func TestMulti_Empty(t *testing.T) {
	multi := New()

	resp, err := multi.PostItems(context.Background(), "tok", []*rollnotify.Item{{}})

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.NoError(t, multi.Close())
}

func TestMulti_Close_AggregatesErrors(t *testing.T) {
	errClose := errors.New("close failed")
	t1 := &mockTransport{closeErr: errClose}
	t2 := &mockTransport{}

	err := New(t1, t2).Close()

	assert.ErrorIs(t, err, errClose)
	assert.True(t, t1.closed)
	assert.True(t, t2.closed)
}
