// Package apperr provides the tagged error kinds shared across mnemex's
// core operations (§7). Every core operation returns a plain Go error;
// callers that need to map an error onto an HTTP status or a retry
// decision type-assert it to *apperr.Error and inspect its Kind.
package apperr

import "fmt"

// Kind names a class of failure. Kind values carry no language meaning —
// they are the vocabulary spec §7 asks every layer to report in.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindDatabase        Kind = "database"
	KindVectorStore     Kind = "vector_store"
	KindEmbedding       Kind = "embedding_error"
	KindLLM             Kind = "llm_error"
	KindTemplateMissing Kind = "template_not_found"
	KindStorage         Kind = "storage_error"
)

// Error is a kind-tagged error. Op names the operation that failed
// (e.g. "MemoryStore.Get"); Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%s", msg)}
}

// Wrap builds an *Error from an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or something it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}

// HTTPStatus maps a Kind onto the status code the external HTTP collaborator
// (§7 propagation policy) should use.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	default:
		return 500
	}
}
