package structure

import (
	"errors"
	"fmt"
	"strconv"
)

// ReplaceModel substitutes the entire model.
type ReplaceModel struct {
	Model *Model
}

func (ReplaceModel) Name() string { return "replace_model" }

func (t ReplaceModel) transform(_ *Model) (*Model, error) {
	if t.Model == nil {
		return nil, errors.New("replace model: nil model")
	}
	if err := Validate(t.Model); err != nil {
		return nil, err
	}
	return t.Model, nil
}

// ReplaceFile substitutes the struct list of one file. A file missing from a
// known package is appended to it. When the package is unknown and Fallback
// is set, the whole model is replaced instead.
type ReplaceFile struct {
	Package  string
	File     string
	Structs  []*Struct
	Fallback *Model
}

func (ReplaceFile) Name() string { return "replace_file" }

func (t ReplaceFile) transform(m *Model) (*Model, error) {
	ref := NodeRef{Package: t.Package, File: t.File}
	structs := t.Structs
	if structs == nil {
		structs = []*Struct{}
	}
	path, err := Resolve(m, ref)
	var refErr *ReferenceError
	switch {
	case err == nil:
	case errors.As(err, &refErr) && refErr.Missing == "file" && t.File != "":
		return insertFile(m, path.Package, &File{Name: t.File, Structs: structs})
	case t.Fallback != nil:
		return ReplaceModel{Model: t.Fallback}.transform(m)
	default:
		return nil, err
	}
	return withFile(m, path, func(f *File) error {
		f.Structs = structs
		return validateFile(t.Package, f)
	})
}

// ReplaceEdges substitutes the edge list.
type ReplaceEdges struct {
	Edges []Edge
}

func (ReplaceEdges) Name() string { return "replace_edges" }

func (t ReplaceEdges) transform(m *Model) (*Model, error) {
	edges := t.Edges
	if edges == nil {
		edges = []Edge{}
	}
	return &Model{Packages: m.Packages, Edges: edges, GlobalFunctions: m.GlobalFunctions}, nil
}

// ReplaceFunctions substitutes the global function list.
type ReplaceFunctions struct {
	Functions []GlobalFunction
}

func (ReplaceFunctions) Name() string { return "replace_functions" }

func (t ReplaceFunctions) transform(m *Model) (*Model, error) {
	fns := t.Functions
	if fns == nil {
		fns = []GlobalFunction{}
	}
	return &Model{Packages: m.Packages, Edges: m.Edges, GlobalFunctions: fns}, nil
}

// Batch runs its steps in order and fails as a whole: when any step is
// rejected none of them take effect.
type Batch struct {
	Steps []Transformation
}

func (Batch) Name() string { return "batch" }

func (t Batch) transform(m *Model) (*Model, error) {
	cur := m
	for i, step := range t.Steps {
		if step == nil {
			return nil, fmt.Errorf("batch step %d: nil transformation", i)
		}
		next, err := step.transform(cur)
		if err != nil {
			return nil, fmt.Errorf("batch step %d (%s): %w", i, step.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// DeleteStruct removes a struct from its file. Deleting a struct that is
// already gone is a no-op.
type DeleteStruct struct {
	Ref NodeRef
}

func (DeleteStruct) Name() string { return "delete_struct" }

func (t DeleteStruct) transform(m *Model) (*Model, error) {
	if t.Ref.Struct == "" {
		return nil, &ReferenceError{Ref: t.Ref, Missing: "struct"}
	}
	path, err := Resolve(m, t.Ref)
	if err != nil {
		var refErr *ReferenceError
		if errors.As(err, &refErr) && refErr.Missing == "struct" {
			return m, nil
		}
		return nil, err
	}
	return withFile(m, path, func(f *File) error {
		f.Structs = removeAt(f.Structs, path.Struct)
		return nil
	})
}

// RenameStruct sets a struct's name. Edges naming the old name are left alone
// and stop resolving.
type RenameStruct struct {
	Ref     NodeRef
	NewName string
}

func (RenameStruct) Name() string { return "rename_struct" }

func (t RenameStruct) transform(m *Model) (*Model, error) {
	if t.NewName == "" {
		return nil, &InvalidEntry{Scope: "file " + t.Ref.Package + "/" + t.Ref.File, Kind: "struct"}
	}
	path, err := resolveStruct(m, t.Ref)
	if err != nil {
		return nil, err
	}
	return withFile(m, path, func(f *File) error {
		st := f.Structs[path.Struct]
		renamed := &Struct{Name: t.NewName, Fields: st.Fields, Methods: st.Methods}
		f.Structs = replaceAt(f.Structs, path.Struct, renamed)
		return validateFile(t.Ref.Package, f)
	})
}

// AddField appends a placeholder field.
type AddField struct {
	Ref NodeRef
}

func (AddField) Name() string { return "add_field" }

func (t AddField) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		st.Fields = appendCopy(st.Fields, Field{
			Name: PlaceholderName,
			Type: TypeRef{Literal: PlaceholderType, Structs: []string{}},
		})
		return nil
	})
}

// RemoveField removes the field at Index.
type RemoveField struct {
	Ref   NodeRef
	Index int
}

func (RemoveField) Name() string { return "remove_field" }

func (t RemoveField) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		if t.Index < 0 || t.Index >= len(st.Fields) {
			return indexError(t.Ref, "field", t.Index, len(st.Fields))
		}
		st.Fields = removeAt(st.Fields, t.Index)
		return nil
	})
}

// RenameField sets the name of the field at Index.
type RenameField struct {
	Ref     NodeRef
	Index   int
	NewName string
}

func (RenameField) Name() string { return "rename_field" }

func (t RenameField) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		if t.Index < 0 || t.Index >= len(st.Fields) {
			return indexError(t.Ref, "field", t.Index, len(st.Fields))
		}
		field := st.Fields[t.Index]
		field.Name = t.NewName
		st.Fields = replaceAt(st.Fields, t.Index, field)
		return nil
	})
}

// RetypeField sets the type literal of the field at Index.
type RetypeField struct {
	Ref     NodeRef
	Index   int
	NewType string
}

func (RetypeField) Name() string { return "retype_field" }

func (t RetypeField) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		if t.Index < 0 || t.Index >= len(st.Fields) {
			return indexError(t.Ref, "field", t.Index, len(st.Fields))
		}
		field := st.Fields[t.Index]
		field.Type.Literal = t.NewType
		st.Fields = replaceAt(st.Fields, t.Index, field)
		return nil
	})
}

// AddStruct appends a placeholder struct with no fields to a file. The name
// gets a numeric suffix when the placeholder is already taken.
type AddStruct struct {
	Ref NodeRef
}

func (AddStruct) Name() string { return "add_struct" }

func (t AddStruct) transform(m *Model) (*Model, error) {
	ref := t.Ref.FileRef()
	path, err := Resolve(m, ref)
	if err != nil {
		return nil, err
	}
	return withFile(m, path, func(f *File) error {
		f.Structs = appendCopy(f.Structs, &Struct{
			Name:    uniqueStructName(f, PlaceholderName),
			Fields:  []Field{},
			Methods: []Method{},
		})
		return validateFile(ref.Package, f)
	})
}

// RenameMethod sets the name of the method at Index.
type RenameMethod struct {
	Ref     NodeRef
	Index   int
	NewName string
}

func (RenameMethod) Name() string { return "rename_method" }

func (t RenameMethod) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		if t.Index < 0 || t.Index >= len(st.Methods) {
			return indexError(t.Ref, "method", t.Index, len(st.Methods))
		}
		method := st.Methods[t.Index]
		method.Name = t.NewName
		st.Methods = replaceAt(st.Methods, t.Index, method)
		return nil
	})
}

// RetypeMethodReturn sets the literal of one return type of a method.
type RetypeMethodReturn struct {
	Ref       NodeRef
	Index     int
	TypeIndex int
	NewType   string
}

func (RetypeMethodReturn) Name() string { return "retype_method_return" }

func (t RetypeMethodReturn) transform(m *Model) (*Model, error) {
	return withStruct(m, t.Ref, func(st *Struct) error {
		if t.Index < 0 || t.Index >= len(st.Methods) {
			return indexError(t.Ref, "method", t.Index, len(st.Methods))
		}
		method := st.Methods[t.Index]
		if t.TypeIndex < 0 || t.TypeIndex >= len(method.ReturnType) {
			return indexError(t.Ref, "return type", t.TypeIndex, len(method.ReturnType))
		}
		ret := method.ReturnType[t.TypeIndex]
		ret.Literal = t.NewType
		method.ReturnType = replaceAt(method.ReturnType, t.TypeIndex, ret)
		st.Methods = replaceAt(st.Methods, t.Index, method)
		return nil
	})
}

// withFile reallocates the model, package and file on the way to path and
// hands the copied file to fn. Everything fn does not touch stays shared.
func withFile(m *Model, path Path, fn func(f *File) error) (*Model, error) {
	pkg := m.Packages[path.Package]
	file := pkg.Files[path.File]
	nextFile := &File{Name: file.Name, Structs: file.Structs}
	if err := fn(nextFile); err != nil {
		return nil, err
	}
	nextPkg := &Package{Name: pkg.Name, Files: replaceAt(pkg.Files, path.File, nextFile)}
	return &Model{
		Packages:        replaceAt(m.Packages, path.Package, nextPkg),
		Edges:           m.Edges,
		GlobalFunctions: m.GlobalFunctions,
	}, nil
}

// insertFile appends file to the package at index pkgIndex.
func insertFile(m *Model, pkgIndex int, file *File) (*Model, error) {
	pkg := m.Packages[pkgIndex]
	if err := validateFile(pkg.Name, file); err != nil {
		return nil, err
	}
	nextPkg := &Package{Name: pkg.Name, Files: appendCopy(pkg.Files, file)}
	return &Model{
		Packages:        replaceAt(m.Packages, pkgIndex, nextPkg),
		Edges:           m.Edges,
		GlobalFunctions: m.GlobalFunctions,
	}, nil
}

func withStruct(m *Model, ref NodeRef, fn func(st *Struct) error) (*Model, error) {
	path, err := resolveStruct(m, ref)
	if err != nil {
		return nil, err
	}
	return withFile(m, path, func(f *File) error {
		st := f.Structs[path.Struct]
		next := &Struct{Name: st.Name, Fields: st.Fields, Methods: st.Methods}
		if err := fn(next); err != nil {
			return err
		}
		f.Structs = replaceAt(f.Structs, path.Struct, next)
		return nil
	})
}

func uniqueStructName(f *File, base string) string {
	taken := make(map[string]struct{}, len(f.Structs))
	for _, st := range f.Structs {
		taken[st.Name] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		name := base + strconv.Itoa(n)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}

func replaceAt[T any](s []T, i int, v T) []T {
	out := make([]T, len(s))
	copy(out, s)
	out[i] = v
	return out
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

// Describe renders a transformation for logs.
func Describe(t Transformation) string {
	switch t := t.(type) {
	case RenameStruct:
		return fmt.Sprintf("%s %s -> %q", t.Name(), t.Ref, t.NewName)
	case RenameField:
		return fmt.Sprintf("%s %s[%d] -> %q", t.Name(), t.Ref, t.Index, t.NewName)
	case RetypeField:
		return fmt.Sprintf("%s %s[%d] -> %q", t.Name(), t.Ref, t.Index, t.NewType)
	case RenameMethod:
		return fmt.Sprintf("%s %s#%d -> %q", t.Name(), t.Ref, t.Index, t.NewName)
	case RetypeMethodReturn:
		return fmt.Sprintf("%s %s#%d.%d -> %q", t.Name(), t.Ref, t.Index, t.TypeIndex, t.NewType)
	case RemoveField:
		return fmt.Sprintf("%s %s[%d]", t.Name(), t.Ref, t.Index)
	case AddField:
		return fmt.Sprintf("%s %s", t.Name(), t.Ref)
	case AddStruct:
		return fmt.Sprintf("%s %s", t.Name(), t.Ref)
	case DeleteStruct:
		return fmt.Sprintf("%s %s", t.Name(), t.Ref)
	case ReplaceFile:
		return fmt.Sprintf("%s %s/%s (%d structs)", t.Name(), t.Package, t.File, len(t.Structs))
	case Batch:
		return fmt.Sprintf("%s (%d steps)", t.Name(), len(t.Steps))
	case nil:
		return "<nil>"
	default:
		return t.Name()
	}
}
