package structure

import "fmt"

// ReferenceError reports a NodeRef (or index under it) that does not resolve.
type ReferenceError struct {
	Ref     NodeRef
	Missing string
	Index   int
	Len     int
}

func (e *ReferenceError) Error() string {
	if e.Missing == "field" || e.Missing == "method" || e.Missing == "return type" {
		return fmt.Sprintf("reference %s: %s index %d out of range [0,%d)", e.Ref, e.Missing, e.Index, e.Len)
	}
	return fmt.Sprintf("reference %s: %s not found", e.Ref, e.Missing)
}

// UniquenessViolation reports two entities sharing a name within one scope.
type UniquenessViolation struct {
	Scope string
	Name  string
}

func (e *UniquenessViolation) Error() string {
	return fmt.Sprintf("duplicate name %q in %s", e.Name, e.Scope)
}

func indexError(ref NodeRef, what string, index, length int) error {
	return &ReferenceError{Ref: ref, Missing: what, Index: index, Len: length}
}

// InvalidEntry reports a missing or unnamed package, file or struct.
type InvalidEntry struct {
	Scope string
	Kind  string
	Null  bool
}

func (e *InvalidEntry) Error() string {
	if e.Null {
		return fmt.Sprintf("null %s in %s", e.Kind, e.Scope)
	}
	return fmt.Sprintf("empty %s name in %s", e.Kind, e.Scope)
}
