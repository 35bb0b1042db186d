package structure

import "fmt"

// IntentKind tags an EditIntent. The values double as the wire action names.
type IntentKind string

const (
	IntentDeleteStruct       IntentKind = "deleteStruct"
	IntentRenameStruct       IntentKind = "renameStruct"
	IntentAddField           IntentKind = "addField"
	IntentRemoveField        IntentKind = "removeField"
	IntentRenameField        IntentKind = "renameField"
	IntentRetypeField        IntentKind = "retypeField"
	IntentAddStruct          IntentKind = "addStruct"
	IntentRenameMethod       IntentKind = "renameMethod"
	IntentRetypeMethodReturn IntentKind = "retypeMethodReturn"
)

// EditIntent is a user request to change the model. Index addresses a field
// or method; TypeIndex a method return type; Value carries the new text.
type EditIntent struct {
	Kind      IntentKind
	Ref       NodeRef
	Index     int
	TypeIndex int
	Value     string
}

// Leaf identifies the text slot an intent edits. Two intents with the same
// leaf overwrite each other.
type Leaf struct {
	Kind      IntentKind
	Ref       NodeRef
	Index     int
	TypeIndex int
}

func (l Leaf) String() string {
	switch l.Kind {
	case IntentRenameStruct:
		return fmt.Sprintf("%s:%s", l.Kind, l.Ref)
	case IntentRetypeMethodReturn:
		return fmt.Sprintf("%s:%s#%d.%d", l.Kind, l.Ref, l.Index, l.TypeIndex)
	default:
		return fmt.Sprintf("%s:%s[%d]", l.Kind, l.Ref, l.Index)
	}
}

// IsText reports whether the intent edits a text leaf and therefore has
// separate live and commit phases.
func (i EditIntent) IsText() bool {
	switch i.Kind {
	case IntentRenameStruct, IntentRenameField, IntentRetypeField, IntentRenameMethod, IntentRetypeMethodReturn:
		return true
	}
	return false
}

// Leaf returns the slot edited by a text intent.
func (i EditIntent) Leaf() Leaf {
	leaf := Leaf{Kind: i.Kind, Ref: i.Ref}
	switch i.Kind {
	case IntentRenameField, IntentRetypeField, IntentRenameMethod:
		leaf.Index = i.Index
	case IntentRetypeMethodReturn:
		leaf.Index = i.Index
		leaf.TypeIndex = i.TypeIndex
	}
	return leaf
}

// Intent rebuilds a text intent for the leaf with the given value.
func (l Leaf) Intent(value string) EditIntent {
	return EditIntent{Kind: l.Kind, Ref: l.Ref, Index: l.Index, TypeIndex: l.TypeIndex, Value: value}
}

// Transformation maps the intent to the store transformation that applies it.
func (i EditIntent) Transformation() (Transformation, error) {
	switch i.Kind {
	case IntentDeleteStruct:
		return DeleteStruct{Ref: i.Ref}, nil
	case IntentRenameStruct:
		return RenameStruct{Ref: i.Ref, NewName: i.Value}, nil
	case IntentAddField:
		return AddField{Ref: i.Ref}, nil
	case IntentRemoveField:
		return RemoveField{Ref: i.Ref, Index: i.Index}, nil
	case IntentRenameField:
		return RenameField{Ref: i.Ref, Index: i.Index, NewName: i.Value}, nil
	case IntentRetypeField:
		return RetypeField{Ref: i.Ref, Index: i.Index, NewType: i.Value}, nil
	case IntentAddStruct:
		return AddStruct{Ref: i.Ref}, nil
	case IntentRenameMethod:
		return RenameMethod{Ref: i.Ref, Index: i.Index, NewName: i.Value}, nil
	case IntentRetypeMethodReturn:
		return RetypeMethodReturn{Ref: i.Ref, Index: i.Index, TypeIndex: i.TypeIndex, NewType: i.Value}, nil
	default:
		return nil, fmt.Errorf("unknown edit intent %q", i.Kind)
	}
}

// LeafValue reads the current text of the leaf a text intent edits.
func LeafValue(m *Model, leaf Leaf) (string, error) {
	path, err := resolveStruct(m, leaf.Ref)
	if err != nil {
		return "", err
	}
	st := m.Packages[path.Package].Files[path.File].Structs[path.Struct]
	switch leaf.Kind {
	case IntentRenameStruct:
		return st.Name, nil
	case IntentRenameField, IntentRetypeField:
		if leaf.Index < 0 || leaf.Index >= len(st.Fields) {
			return "", indexError(leaf.Ref, "field", leaf.Index, len(st.Fields))
		}
		if leaf.Kind == IntentRenameField {
			return st.Fields[leaf.Index].Name, nil
		}
		return st.Fields[leaf.Index].Type.Literal, nil
	case IntentRenameMethod, IntentRetypeMethodReturn:
		if leaf.Index < 0 || leaf.Index >= len(st.Methods) {
			return "", indexError(leaf.Ref, "method", leaf.Index, len(st.Methods))
		}
		method := st.Methods[leaf.Index]
		if leaf.Kind == IntentRenameMethod {
			return method.Name, nil
		}
		if leaf.TypeIndex < 0 || leaf.TypeIndex >= len(method.ReturnType) {
			return "", indexError(leaf.Ref, "return type", leaf.TypeIndex, len(method.ReturnType))
		}
		return method.ReturnType[leaf.TypeIndex].Literal, nil
	default:
		return "", fmt.Errorf("%s is not a text leaf", leaf.Kind)
	}
}
