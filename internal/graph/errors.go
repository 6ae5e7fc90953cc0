package graph

import "fmt"

// ReferenceError reports a relationship that names a node absent from the
// store. The failing endpoint is recorded in Missing.
type ReferenceError struct {
	Source  string
	Target  string
	Missing string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("relationship %s->%s references unknown node %q", e.Source, e.Target, e.Missing)
}

// NotFoundError reports an operation that targets an entity that does not
// exist, where upsert semantics do not apply.
type NotFoundError struct {
	Kind string // "node" or "relationship"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// ValidationError reports a malformed condition specification, an unknown
// logic mode, or an unknown direction token.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PersistenceError reports a backing file that could not be read, written,
// or parsed into the expected snapshot shape.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %q: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func nodeNotFound(id string) error {
	return &NotFoundError{Kind: "node", Key: id}
}

func relationshipNotFound(source, target string) error {
	return &NotFoundError{Kind: "relationship", Key: source + "->" + target}
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func persistencef(path string, err error) error {
	return &PersistenceError{Path: path, Err: err}
}
