// context.go carries per-request reporting data through context.Context.

package rollnotify

import "context"

type runIDKey struct{}
type contextIDKey struct{}
type personKey struct{}

// contextIDSet distinguishes a zero context ID from an absent one.
type contextIDSet struct {
	id uint64
}

// WithRunID attaches a run ID. The agent adapter uses it to correlate hook
// enrichment with the error reported at the runner boundary.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID, or false if unset or empty.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// WithContextID attaches a cxdb context ID. Items reported with this context
// carry it in Item.ContextID.
func WithContextID(ctx context.Context, contextID uint64) context.Context {
	return context.WithValue(ctx, contextIDKey{}, contextIDSet{id: contextID})
}

// ContextIDFromContext returns the cxdb context ID, or false if unset.
func ContextIDFromContext(ctx context.Context) (uint64, bool) {
	set, ok := ctx.Value(contextIDKey{}).(contextIDSet)
	if !ok {
		return 0, false
	}
	return set.id, true
}

// ContextIDProvider is implemented by sessions that know their cxdb context.
type ContextIDProvider interface {
	ContextID(ctx context.Context) (uint64, error)
}

// WithPerson attaches the person to report when the request has none.
func WithPerson(ctx context.Context, p *Person) context.Context {
	return context.WithValue(ctx, personKey{}, p)
}

// PersonFromContext returns the person attached with WithPerson.
func PersonFromContext(ctx context.Context) (*Person, bool) {
	p, ok := ctx.Value(personKey{}).(*Person)
	return p, ok && p != nil
}
