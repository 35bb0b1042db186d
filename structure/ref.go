package structure

import (
	"fmt"
	"regexp"
)

// NodeRef identifies a location in the model by name. Struct is optional: a
// ref without it addresses a file.
type NodeRef struct {
	Package string `json:"packageName"`
	File    string `json:"fileName"`
	Struct  string `json:"structName,omitempty"`
}

func (r NodeRef) String() string {
	if r.Struct == "" {
		return fmt.Sprintf("%s/%s", r.Package, r.File)
	}
	return fmt.Sprintf("%s/%s.%s", r.Package, r.File, r.Struct)
}

// FileRef drops the struct component.
func (r NodeRef) FileRef() NodeRef {
	return NodeRef{Package: r.Package, File: r.File}
}

// WithStruct returns a copy of r addressing the named struct.
func (r NodeRef) WithStruct(name string) NodeRef {
	r.Struct = name
	return r
}

var selectorUnsafe = regexp.MustCompile(`[^\w\s-]`)

// Key returns a stable identifier for r, with anything other than word
// characters, whitespace and dashes replaced by '-'.
func (r NodeRef) Key() string {
	return selectorUnsafe.ReplaceAllString(r.Package+"-"+r.File+"-"+r.Struct, "-")
}

// Path is a NodeRef resolved to indices. Struct is -1 for file-level paths.
type Path struct {
	Package int
	File    int
	Struct  int
}

func (p Path) HasStruct() bool { return p.Struct >= 0 }

// Resolve locates ref in m. Package, file and (when named) struct must all be
// found by name; the first match wins.
func Resolve(m *Model, ref NodeRef) (Path, error) {
	path := Path{Package: -1, File: -1, Struct: -1}
	if m == nil {
		return path, &ReferenceError{Ref: ref, Missing: "model"}
	}
	for i, pkg := range m.Packages {
		if pkg.Name == ref.Package {
			path.Package = i
			break
		}
	}
	if path.Package < 0 {
		return path, &ReferenceError{Ref: ref, Missing: "package"}
	}
	for i, file := range m.Packages[path.Package].Files {
		if file.Name == ref.File {
			path.File = i
			break
		}
	}
	if path.File < 0 {
		return path, &ReferenceError{Ref: ref, Missing: "file"}
	}
	if ref.Struct == "" {
		return path, nil
	}
	for i, st := range m.Packages[path.Package].Files[path.File].Structs {
		if st.Name == ref.Struct {
			path.Struct = i
			break
		}
	}
	if path.Struct < 0 {
		return path, &ReferenceError{Ref: ref, Missing: "struct"}
	}
	return path, nil
}

func resolveStruct(m *Model, ref NodeRef) (Path, error) {
	if ref.Struct == "" {
		return Path{Package: -1, File: -1, Struct: -1}, &ReferenceError{Ref: ref, Missing: "struct"}
	}
	return Resolve(m, ref)
}
