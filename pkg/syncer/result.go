package syncer

import (
	"fmt"
	"strings"
)

// Result is the outcome of a sync phase or pass: exactly one of Success,
// Error or Skipped.
type Result interface {
	isResult()
}

// Success reports applied items, the pass timestamp and the latest etag.
type Success struct {
	Updated   int
	Timestamp int64
	Etag      string
}

// Error reports a failed phase. Succeeded counts the items that were
// committed before or despite the failure.
type Error struct {
	Cause       error
	FailedItems int
	Succeeded   int
}

// Skipped reports a phase or pass that did nothing, which is not a failure.
type Skipped struct {
	Reason string
}

func (Success) isResult() {}
func (Error) isResult()   {}
func (Skipped) isResult() {}

func (e Error) Unwrap() error { return e.Cause }

// Combine merges the push and pull results of one pass. Any Error wins,
// push first; a Skipped side yields the other side; two Successes merge.
func Combine(push, pull Result) Result {
	if e, ok := push.(Error); ok {
		return e
	}
	if e, ok := pull.(Error); ok {
		return e
	}
	switch p := push.(type) {
	case Skipped:
		switch q := pull.(type) {
		case Skipped:
			return Skipped{Reason: joinReasons(p.Reason, q.Reason)}
		case Success:
			return q
		}
	case Success:
		switch q := pull.(type) {
		case Skipped:
			return p
		case Success:
			etag := q.Etag
			if etag == "" {
				etag = p.Etag
			}
			return Success{
				Updated:   p.Updated + q.Updated,
				Timestamp: max(p.Timestamp, q.Timestamp),
				Etag:      etag,
			}
		}
	}
	return Error{Cause: fmt.Errorf("unexpected results %T and %T", push, pull)}
}

// Describe renders a result for diagnostics and logs.
func Describe(r Result) string {
	switch v := r.(type) {
	case Success:
		return fmt.Sprintf("success: %d updated", v.Updated)
	case Error:
		msg := "error"
		if v.Cause != nil {
			msg = "error: " + v.Cause.Error()
		}
		if v.FailedItems > 0 || v.Succeeded > 0 {
			msg += fmt.Sprintf(" (%d ok, %d failed)", v.Succeeded, v.FailedItems)
		}
		return msg
	case Skipped:
		return "skipped: " + v.Reason
	case nil:
		return "none"
	}
	return fmt.Sprintf("unknown result %T", r)
}

// counts returns the succeeded and failed item counts of a phase.
func counts(r Result) (ok, failed int) {
	switch v := r.(type) {
	case Success:
		return v.Updated, 0
	case Error:
		return v.Succeeded, v.FailedItems
	}
	return 0, 0
}

func joinReasons(reasons ...string) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "; ")
}
