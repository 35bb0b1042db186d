package structure

import "strings"

// Placeholder names used for freshly added entities until the user edits them.
const (
	PlaceholderName = "[name]"
	PlaceholderType = "[type]"
	LoadingName     = "loading..."
)

// Model is the root aggregate pushed by the watcher. Packages, files and
// structs are held by pointer so untouched subtrees can be shared between
// successive versions of the model.
type Model struct {
	Packages        []*Package       `json:"packages"`
	Edges           []Edge           `json:"edges"`
	GlobalFunctions []GlobalFunction `json:"globalFunctions"`
}

// Package groups files by Go package name.
type Package struct {
	Name  string  `json:"name"`
	Files []*File `json:"files"`
}

// File holds the structs declared in one source file.
type File struct {
	Name    string    `json:"name"`
	Structs []*Struct `json:"structs"`
}

// Struct is a type declaration with its fields and methods.
type Struct struct {
	Name    string   `json:"name"`
	Fields  []Field  `json:"fields"`
	Methods []Method `json:"methods"`
}

type Field struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

type Parameter struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

type Method struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType []TypeRef   `json:"returnType"`
}

// GlobalFunction is a free function together with its location.
type GlobalFunction struct {
	Name       string      `json:"name"`
	Package    string      `json:"package"`
	File       string      `json:"file"`
	Parameters []Parameter `json:"parameters"`
	ReturnType []TypeRef   `json:"returnType"`
}

// Edge is a directed relationship between two struct nodes, used only for
// drawing. Field names the struct field that produced the reference, if any.
type Edge struct {
	From  NodeRef `json:"from"`
	To    NodeRef `json:"to"`
	Field string  `json:"fieldTypeName,omitempty"`
}

// TypeRef is the display form of a type plus the structs it references.
type TypeRef struct {
	Literal string   `json:"literal"`
	Structs []string `json:"structs,omitempty"`
}

// Kind classifies a type for presentation.
type Kind string

const KindOther Kind = "other"

var basicKinds = map[string]struct{}{
	"bool": {}, "string": {}, "error": {}, "any": {},
	"int": {}, "int8": {}, "int16": {}, "int32": {}, "int64": {},
	"uint": {}, "uint8": {}, "uint16": {}, "uint32": {}, "uint64": {}, "uintptr": {},
	"float32": {}, "float64": {}, "complex64": {}, "complex128": {},
	"byte": {}, "rune": {},
}

// Kind returns the primitive kind named by the literal, or KindOther.
func (t TypeRef) Kind() Kind {
	literal := strings.TrimSpace(t.Literal)
	if _, ok := basicKinds[literal]; ok {
		return Kind(literal)
	}
	return KindOther
}

// Placeholder returns the "loading" model shown before the first snapshot.
func Placeholder() *Model {
	return &Model{
		Packages: []*Package{{
			Name: LoadingName,
			Files: []*File{{
				Name:    LoadingName,
				Structs: []*Struct{},
			}},
		}},
		Edges:           []Edge{},
		GlobalFunctions: []GlobalFunction{},
	}
}

// IsPlaceholder reports whether m is the loading model.
func (m *Model) IsPlaceholder() bool {
	if m == nil {
		return true
	}
	return len(m.Packages) == 1 && m.Packages[0].Name == LoadingName && len(m.Edges) == 0
}

// Lookup returns the struct addressed by ref, if it exists.
func (m *Model) Lookup(ref NodeRef) (*Struct, bool) {
	path, err := Resolve(m, ref)
	if err != nil || !path.HasStruct() {
		return nil, false
	}
	return m.Packages[path.Package].Files[path.File].Structs[path.Struct], true
}

// Counts returns the number of packages, files, structs and edges in m.
func (m *Model) Counts() (packages, files, structs, edges int) {
	if m == nil {
		return 0, 0, 0, 0
	}
	for _, pkg := range m.Packages {
		files += len(pkg.Files)
		for _, file := range pkg.Files {
			structs += len(file.Structs)
		}
	}
	return len(m.Packages), files, structs, len(m.Edges)
}

// Normalize replaces nil slices with empty ones so the model marshals the way
// the watcher expects. Nil entries are left for Validate to reject.
func (m *Model) Normalize() *Model {
	if m == nil {
		return Placeholder()
	}
	if m.Packages == nil {
		m.Packages = []*Package{}
	}
	if m.Edges == nil {
		m.Edges = []Edge{}
	}
	if m.GlobalFunctions == nil {
		m.GlobalFunctions = []GlobalFunction{}
	}
	for _, pkg := range m.Packages {
		if pkg == nil {
			continue
		}
		if pkg.Files == nil {
			pkg.Files = []*File{}
		}
		for _, file := range pkg.Files {
			if file == nil {
				continue
			}
			if file.Structs == nil {
				file.Structs = []*Struct{}
			}
			for _, st := range file.Structs {
				if st == nil {
					continue
				}
				if st.Fields == nil {
					st.Fields = []Field{}
				}
				if st.Methods == nil {
					st.Methods = []Method{}
				}
			}
		}
	}
	return m
}

// Signature renders a function or method header as Go source would spell it.
func Signature(name string, params []Parameter, returns []TypeRef) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, strings.TrimSpace(p.Name+" "+p.Type.Literal))
	}
	out := name + "(" + strings.Join(parts, ", ") + ")"
	switch len(returns) {
	case 0:
	case 1:
		out += " " + returns[0].Literal
	default:
		types := make([]string, len(returns))
		for i, t := range returns {
			types[i] = t.Literal
		}
		out += " (" + strings.Join(types, ", ") + ")"
	}
	return out
}

// Signature renders the method header.
func (m Method) Signature() string { return Signature(m.Name, m.Parameters, m.ReturnType) }

// Signature renders the function header.
func (f GlobalFunction) Signature() string { return Signature(f.Name, f.Parameters, f.ReturnType) }
