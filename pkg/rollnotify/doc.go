// Package rollnotify reports errors and messages from a Go process to a
// Rollbar-compatible ingestion API.
//
// Each report is turned into an Item: the error is parsed into stack frames
// (with surrounding source lines for application code), request data is
// scrubbed of sensitive fields, and environment metadata is attached. Items
// are queued on a Notifier and delivered in batches by a Transport.
//
// # Core Components
//
//   - Notifier: owns the queue, the minimum-level filter and the flush scheduler
//   - StackParser: turns errors, pkg/errors stacks and raw stack text into frames
//   - Scrubber: masks configured header and parameter values
//   - Transport: delivers a batch of items (HTTP, console, cxdb, multi, noop)
//
// # Quick Start
//
//	n := rollnotify.New()
//	if err := n.Init(token, rollnotify.WithEnvironment("production")); err != nil {
//	    log.Fatal(err)
//	}
//	defer n.Shutdown(context.Background())
//
//	n.HandleError(ctx, rollnotify.NewError("boom"), nil, nil)
//
// # Handler Modes
//
// ModeInterval (the default) flushes one batch every HandlerInterval.
// ModeNextTick flushes on a background worker right after each report.
// ModeInline flushes before the report call returns.
//
// # Design Principles
//
//   - Reporting never panics into the host: assembly failures become errors
//   - Delivery is at most once: a failed batch is reported, never re-queued
//   - Items below the minimum level are queued but dropped at delivery time
package rollnotify
