package filter

import (
	"strings"

	"github.com/lexcodex/godiagram/structure"
)

// Index matches names and types against a case-insensitive substring query.
// It only marks matches; the model is never filtered.
type Index struct {
	query string
	lower string
}

// SetQuery replaces the query. Surrounding whitespace is kept: searching for
// " id" is different from "id".
func (i *Index) SetQuery(q string) {
	i.query = q
	i.lower = strings.ToLower(q)
}

// Query returns the query as the user typed it.
func (i *Index) Query() string { return i.query }

// Active reports whether a non-empty query is set.
func (i *Index) Active() bool { return i.query != "" }

// IsHighlighted reports whether text contains the query. An empty query
// highlights nothing.
func (i *Index) IsHighlighted(text string) bool {
	if i.query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), i.lower)
}

// Marks is the highlight set for one model, keyed by the same paths the
// renderer walks.
type Marks struct {
	Packages  map[string]bool
	Files     map[structure.NodeRef]bool
	Structs   map[structure.NodeRef]bool
	Fields    map[FieldMark]bool
	Methods   map[FieldMark]bool
	Functions map[int]bool
}

// FieldMark addresses a field or method by struct and position.
type FieldMark struct {
	Struct structure.NodeRef
	Index  int
}

// Count is the total number of highlighted entities.
func (m Marks) Count() int {
	return len(m.Packages) + len(m.Files) + len(m.Structs) + len(m.Fields) + len(m.Methods) + len(m.Functions)
}

func (m Marks) Package(name string) bool { return m.Packages[name] }

func (m Marks) File(ref structure.NodeRef) bool { return m.Files[ref.FileRef()] }

func (m Marks) Struct(ref structure.NodeRef) bool { return m.Structs[ref] }

func (m Marks) Field(ref structure.NodeRef, i int) bool {
	return m.Fields[FieldMark{Struct: ref, Index: i}]
}

func (m Marks) Method(ref structure.NodeRef, i int) bool {
	return m.Methods[FieldMark{Struct: ref, Index: i}]
}

func (m Marks) Function(i int) bool { return m.Functions[i] }

// Marks evaluates the query over every entity of m. Fields match on name or
// type; methods on name or any return type; functions on name, parameter
// names and types, or return types.
func (i *Index) Marks(m *structure.Model) Marks {
	marks := Marks{
		Packages:  map[string]bool{},
		Files:     map[structure.NodeRef]bool{},
		Structs:   map[structure.NodeRef]bool{},
		Fields:    map[FieldMark]bool{},
		Methods:   map[FieldMark]bool{},
		Functions: map[int]bool{},
	}
	if m == nil || !i.Active() {
		return marks
	}
	for _, pkg := range m.Packages {
		if i.IsHighlighted(pkg.Name) {
			marks.Packages[pkg.Name] = true
		}
		for _, file := range pkg.Files {
			fileRef := structure.NodeRef{Package: pkg.Name, File: file.Name}
			if i.IsHighlighted(file.Name) {
				marks.Files[fileRef] = true
			}
			for _, st := range file.Structs {
				ref := fileRef.WithStruct(st.Name)
				if i.IsHighlighted(st.Name) {
					marks.Structs[ref] = true
				}
				for idx, field := range st.Fields {
					if i.IsHighlighted(field.Name) || i.IsHighlighted(field.Type.Literal) {
						marks.Fields[FieldMark{Struct: ref, Index: idx}] = true
					}
				}
				for idx, method := range st.Methods {
					if i.IsHighlighted(method.Name) || i.anyType(method.ReturnType) {
						marks.Methods[FieldMark{Struct: ref, Index: idx}] = true
					}
				}
			}
		}
	}
	for idx, fn := range m.GlobalFunctions {
		if i.IsHighlighted(fn.Name) || i.anyParam(fn.Parameters) || i.anyType(fn.ReturnType) {
			marks.Functions[idx] = true
		}
	}
	return marks
}

func (i *Index) anyType(types []structure.TypeRef) bool {
	for _, t := range types {
		if i.IsHighlighted(t.Literal) {
			return true
		}
	}
	return false
}

func (i *Index) anyParam(params []structure.Parameter) bool {
	for _, p := range params {
		if i.IsHighlighted(p.Name) || i.IsHighlighted(p.Type.Literal) {
			return true
		}
	}
	return false
}

// Span is a run of text that either matches the query or not.
type Span struct {
	Text  string
	Match bool
}

// Spans splits text into matching and non-matching runs so a renderer can
// emphasise the matched part. Without a query the whole text is one span.
func (i *Index) Spans(text string) []Span {
	if i.query == "" || text == "" {
		return []Span{{Text: text}}
	}
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Case folding changed byte lengths; offsets would not line up.
		return []Span{{Text: text, Match: i.IsHighlighted(text)}}
	}
	var spans []Span
	rest := 0
	for {
		at := strings.Index(lower[rest:], i.lower)
		if at < 0 {
			break
		}
		start := rest + at
		end := start + len(i.lower)
		if start > rest {
			spans = append(spans, Span{Text: text[rest:start]})
		}
		spans = append(spans, Span{Text: text[start:end], Match: true})
		rest = end
	}
	if rest < len(text) {
		spans = append(spans, Span{Text: text[rest:]})
	}
	return spans
}
