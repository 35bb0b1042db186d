package structure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleModel() *Model {
	return (&Model{
		Packages: []*Package{
			{
				Name: "p",
				Files: []*File{
					{
						Name: "f",
						Structs: []*Struct{
							{
								Name: "S",
								Fields: []Field{
									{Name: "id", Type: TypeRef{Literal: "int"}},
									{Name: "owner", Type: TypeRef{Literal: "*T", Structs: []string{"T"}}},
								},
								Methods: []Method{
									{Name: "Load", ReturnType: []TypeRef{{Literal: "string"}, {Literal: "error"}}},
								},
							},
							{Name: "T"},
						},
					},
					{Name: "g", Structs: []*Struct{{Name: "U"}}},
				},
			},
			{
				Name:  "q",
				Files: []*File{{Name: "h", Structs: []*Struct{{Name: "V"}}}},
			},
		},
		Edges: []Edge{
			{From: NodeRef{Package: "p", File: "f", Struct: "S"}, To: NodeRef{Package: "p", File: "f", Struct: "T"}, Field: "owner"},
		},
	}).Normalize()
}

func allTransformations(ref NodeRef) []Transformation {
	return []Transformation{
		RenameStruct{Ref: ref, NewName: "Renamed"},
		AddField{Ref: ref},
		RemoveField{Ref: ref, Index: 0},
		RenameField{Ref: ref, Index: 0, NewName: "x"},
		RetypeField{Ref: ref, Index: 0, NewType: "bool"},
		RenameMethod{Ref: ref, Index: 0, NewName: "Store"},
		RetypeMethodReturn{Ref: ref, Index: 0, TypeIndex: 1, NewType: "bool"},
		AddStruct{Ref: ref},
		DeleteStruct{Ref: ref},
	}
}

func TestApplySharesUntouchedSiblings(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	for _, tr := range allTransformations(ref) {
		t.Run(tr.Name(), func(t *testing.T) {
			next, err := Apply(m, tr)
			require.NoError(t, err)
			require.NotSame(t, m, next)
			require.Same(t, m.Packages[1], next.Packages[1], "sibling package must be shared")
			require.Same(t, m.Packages[0].Files[1], next.Packages[0].Files[1], "sibling file must be shared")
			if tr.Name() != "delete_struct" && tr.Name() != "add_struct" {
				require.Same(t, m.Packages[0].Files[0].Structs[1], next.Packages[0].Files[0].Structs[1], "sibling struct must be shared")
			}
			require.Equal(t, sampleModel(), m, "input must not be mutated")
		})
	}
}

func TestApplyMissingReferenceLeavesModelUnchanged(t *testing.T) {
	m := sampleModel()
	missing := []NodeRef{
		{Package: "nope", File: "f", Struct: "S"},
		{Package: "p", File: "nope", Struct: "S"},
	}
	for _, ref := range missing {
		for _, tr := range allTransformations(ref) {
			next, err := Apply(m, tr)
			var refErr *ReferenceError
			require.True(t, errors.As(err, &refErr), "%s at %s: %v", tr.Name(), ref, err)
			require.Same(t, m, next)
		}
	}

	ref := NodeRef{Package: "p", File: "f", Struct: "Missing"}
	for _, tr := range allTransformations(ref) {
		next, err := Apply(m, tr)
		switch tr.(type) {
		case AddStruct:
			require.NoError(t, err, "add_struct only needs the file")
			continue
		case DeleteStruct:
			require.NoError(t, err, "delete is idempotent")
			require.Same(t, m, next)
		default:
			require.Same(t, m, next)
			var refErr *ReferenceError
			require.ErrorAs(t, err, &refErr, tr.Name())
		}
	}
}

func TestAddStructOnFile(t *testing.T) {
	m := &Model{Packages: []*Package{{Name: "p", Files: []*File{{Name: "f", Structs: []*Struct{{Name: "S", Fields: []Field{}, Methods: []Method{}}}}}}}}
	next, err := Apply(m, AddStruct{Ref: NodeRef{Package: "p", File: "f"}})
	require.NoError(t, err)
	structs := next.Packages[0].Files[0].Structs
	require.Len(t, structs, 2)
	require.Equal(t, PlaceholderName, structs[1].Name)
	require.Empty(t, structs[1].Fields)

	again, err := Apply(next, AddStruct{Ref: NodeRef{Package: "p", File: "f"}})
	require.NoError(t, err)
	require.Equal(t, PlaceholderName+"2", again.Packages[0].Files[0].Structs[2].Name)
}

func TestAddFieldThenRemoveRestoresFields(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	original := m.Packages[0].Files[0].Structs[0].Fields

	added, err := Apply(m, AddField{Ref: ref})
	require.NoError(t, err)
	fields := added.Packages[0].Files[0].Structs[0].Fields
	require.Len(t, fields, len(original)+1)
	require.Equal(t, PlaceholderName, fields[len(fields)-1].Name)
	require.Equal(t, PlaceholderType, fields[len(fields)-1].Type.Literal)

	removed, err := Apply(added, RemoveField{Ref: ref, Index: len(fields) - 1})
	require.NoError(t, err)
	require.Equal(t, original, removed.Packages[0].Files[0].Structs[0].Fields)
}

func TestRemoveFieldOutOfRange(t *testing.T) {
	m := sampleModel()
	_, err := Apply(m, RemoveField{Ref: NodeRef{Package: "p", File: "f", Struct: "S"}, Index: 9})
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	require.Equal(t, "field", refErr.Missing)
}

func TestRenameStructKeepsEdges(t *testing.T) {
	m := sampleModel()
	next, err := Apply(m, RenameStruct{Ref: NodeRef{Package: "p", File: "f", Struct: "T"}, NewName: "Team"})
	require.NoError(t, err)
	require.Equal(t, m.Edges, next.Edges)
	require.Len(t, next.Edges, 1)
	_, ok := next.Lookup(next.Edges[0].To)
	require.False(t, ok, "edge to the old name must dangle")
}

func TestRenameStructRejectsDuplicate(t *testing.T) {
	m := sampleModel()
	next, err := Apply(m, RenameStruct{Ref: NodeRef{Package: "p", File: "f", Struct: "T"}, NewName: "S"})
	var dup *UniquenessViolation
	require.ErrorAs(t, err, &dup)
	require.Same(t, m, next)
}

func TestReplaceModelValidatesUniqueness(t *testing.T) {
	dup := &Model{Packages: []*Package{{Name: "a"}, {Name: "a"}}}
	_, err := Apply(Placeholder(), ReplaceModel{Model: dup})
	var violation *UniquenessViolation
	require.ErrorAs(t, err, &violation)

	for _, tc := range []struct {
		name  string
		model *Model
	}{
		{"null package", &Model{Packages: []*Package{nil}}},
		{"null file", &Model{Packages: []*Package{{Name: "p", Files: []*File{nil}}}}},
		{"null struct", &Model{Packages: []*Package{{Name: "p", Files: []*File{{Name: "f", Structs: []*Struct{nil}}}}}}},
		{"unnamed package", &Model{Packages: []*Package{{Name: ""}}}},
		{"unnamed file", &Model{Packages: []*Package{{Name: "p", Files: []*File{{Name: ""}}}}}},
		{"unnamed struct", &Model{Packages: []*Package{{Name: "p", Files: []*File{{Name: "f", Structs: []*Struct{{Name: ""}}}}}}}},
	} {
		start := Placeholder()
		next, err := Apply(start, ReplaceModel{Model: tc.model})
		var invalid *InvalidEntry
		require.ErrorAs(t, err, &invalid, tc.name)
		require.Same(t, start, next, tc.name)
	}

	ok := sampleModel()
	next, err := Apply(Placeholder(), ReplaceModel{Model: ok})
	require.NoError(t, err)
	require.Same(t, ok, next)
}

func TestRenameStructRejectsEmptyName(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	next, err := Apply(m, RenameStruct{Ref: ref, NewName: ""})
	var invalid *InvalidEntry
	require.ErrorAs(t, err, &invalid)
	require.Same(t, m, next)

	next, err = Apply(m, DeleteStruct{Ref: ref})
	require.NoError(t, err)
	require.Len(t, next.Packages[0].Files[0].Structs, 1)
}

func TestReplaceFileInsertsNewFileIntoKnownPackage(t *testing.T) {
	m := sampleModel()
	fallback := &Model{Packages: []*Package{{Name: "z"}}}
	next, err := Apply(m, ReplaceFile{Package: "p", File: "new.go", Structs: []*Struct{{Name: "W"}}, Fallback: fallback})
	require.NoError(t, err)
	require.Len(t, next.Packages, 2)
	require.Len(t, next.Packages[0].Files, 3)
	require.Equal(t, "new.go", next.Packages[0].Files[2].Name)
	require.Same(t, m.Packages[1], next.Packages[1])

	_, err = Apply(m, ReplaceFile{Package: "p", File: "dup.go", Structs: []*Struct{{Name: "A"}, {Name: "A"}}})
	var dup *UniquenessViolation
	require.ErrorAs(t, err, &dup)
}

func TestReplaceFileFallsBackToWholeModel(t *testing.T) {
	m := sampleModel()
	structs := []*Struct{{Name: "Only"}}
	next, err := Apply(m, ReplaceFile{Package: "p", File: "g", Structs: structs})
	require.NoError(t, err)
	require.Equal(t, "Only", next.Packages[0].Files[1].Structs[0].Name)
	require.Same(t, m.Packages[0].Files[0], next.Packages[0].Files[0])

	fallback := &Model{Packages: []*Package{{Name: "z"}}}
	next, err = Apply(m, ReplaceFile{Package: "new", File: "x", Structs: structs, Fallback: fallback})
	require.NoError(t, err)
	require.Same(t, fallback, next)

	_, err = Apply(m, ReplaceFile{Package: "new", File: "x", Structs: structs})
	require.Error(t, err)
}

func TestRetypeMethodReturn(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	next, err := Apply(m, RetypeMethodReturn{Ref: ref, Index: 0, TypeIndex: 0, NewType: "[]byte"})
	require.NoError(t, err)
	require.Equal(t, "[]byte", next.Packages[0].Files[0].Structs[0].Methods[0].ReturnType[0].Literal)
	require.Equal(t, "string", m.Packages[0].Files[0].Structs[0].Methods[0].ReturnType[0].Literal)

	_, err = Apply(m, RetypeMethodReturn{Ref: ref, Index: 0, TypeIndex: 5, NewType: "x"})
	require.Error(t, err)
}

func TestStoreLogsAndKeepsModelOnError(t *testing.T) {
	store := NewStore(nil)
	require.True(t, store.Model().IsPlaceholder())
	require.NoError(t, store.Apply(ReplaceModel{Model: sampleModel()}))
	before := store.Model()
	err := store.Apply(RenameField{Ref: NodeRef{Package: "p", File: "f", Struct: "Nope"}, Index: 0, NewName: "x"})
	require.Error(t, err)
	require.Same(t, before, store.Model())

	store.Reset()
	require.True(t, store.Model().IsPlaceholder())
}

func TestOverlayReportsFailures(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	next, failed := Overlay(m, []Transformation{
		RenameField{Ref: ref, Index: 0, NewName: "ident"},
		RenameField{Ref: ref, Index: 7, NewName: "lost"},
	})
	require.Len(t, failed, 1)
	require.Contains(t, failed, 1)
	require.Equal(t, "ident", next.Packages[0].Files[0].Structs[0].Fields[0].Name)
}

func TestTypeRefKind(t *testing.T) {
	require.Equal(t, Kind("string"), TypeRef{Literal: "string"}.Kind())
	require.Equal(t, Kind("int"), TypeRef{Literal: " int "}.Kind())
	require.Equal(t, KindOther, TypeRef{Literal: "*T"}.Kind())
}

func TestNodeRefKey(t *testing.T) {
	ref := NodeRef{Package: "main", File: "cmd/main.go", Struct: "Server"}
	require.Equal(t, "main-cmd-main-go-Server", ref.Key())
}

func TestBatchIsAtomic(t *testing.T) {
	m := sampleModel()
	ref := NodeRef{Package: "p", File: "f", Struct: "S"}
	next, err := Apply(m, Batch{Steps: []Transformation{
		RenameField{Ref: ref, Index: 0, NewName: "ident"},
		RenameField{Ref: ref, Index: 9, NewName: "lost"},
	}})
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	require.Same(t, m, next)

	next, err = Apply(m, Batch{Steps: []Transformation{
		RenameField{Ref: ref, Index: 0, NewName: "ident"},
		ReplaceEdges{},
		ReplaceFunctions{Functions: []GlobalFunction{{Name: "main"}}},
	}})
	require.NoError(t, err)
	require.Equal(t, "ident", next.Packages[0].Files[0].Structs[0].Fields[0].Name)
	require.NotNil(t, next.Edges)
	require.Empty(t, next.Edges)
	require.Len(t, next.GlobalFunctions, 1)
	require.Same(t, m.Packages[1], next.Packages[1])
}
