package session

import (
	"encoding/json"
	"fmt"

	"github.com/bsthun/gut"

	"github.com/lexcodex/godiagram/structure"
)

// Snapshot is a model push from the watcher. A partial snapshot carries only
// the packages/files that changed; Edges and GlobalFunctions are nil when the
// watcher did not resend them.
type Snapshot struct {
	Partial         bool
	Packages        []*structure.Package
	Edges           []structure.Edge
	GlobalFunctions []structure.GlobalFunction
}

// Model assembles the snapshot into a normalized model.
func (s Snapshot) Model() *structure.Model {
	return (&structure.Model{
		Packages:        s.Packages,
		Edges:           s.Edges,
		GlobalFunctions: s.GlobalFunctions,
	}).Normalize()
}

// Transformation maps the snapshot onto the store: a full snapshot replaces
// the model, a partial one replaces each file it carries and, when present,
// the edge and function lists.
func (s Snapshot) Transformation() structure.Transformation {
	model := s.Model()
	if !s.Partial {
		return structure.ReplaceModel{Model: model}
	}
	var steps []structure.Transformation
	for _, pkg := range model.Packages {
		for _, file := range pkg.Files {
			steps = append(steps, structure.ReplaceFile{
				Package:  pkg.Name,
				File:     file.Name,
				Structs:  file.Structs,
				Fallback: model,
			})
		}
	}
	if s.Edges != nil {
		steps = append(steps, structure.ReplaceEdges{Edges: s.Edges})
	}
	if s.GlobalFunctions != nil {
		steps = append(steps, structure.ReplaceFunctions{Functions: s.GlobalFunctions})
	}
	return structure.Batch{Steps: steps}
}

type inboundMessage struct {
	Error           *string                    `json:"error"`
	ClearLayout     bool                       `json:"clearLayout"`
	FileChanged     bool                       `json:"fileChanged"`
	Packages        []*structure.Package       `json:"packages"`
	Edges           []structure.Edge           `json:"edges"`
	GlobalFunctions []structure.GlobalFunction `json:"globalFunctions"`
}

// Decode classifies one inbound message.
func Decode(raw []byte) (Event, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &ProtocolError{Reason: "malformed json", Err: err, Raw: raw}
	}
	if hasNullEntry(msg.Packages) {
		return nil, &ProtocolError{Reason: "null entry", Raw: raw}
	}
	switch {
	case msg.Error != nil:
		return PeerErrorEvent{Err: &PeerError{Message: *msg.Error}}, nil
	case msg.ClearLayout:
		return ClearEvent{}, nil
	case msg.FileChanged:
		if msg.Packages == nil {
			return nil, &ProtocolError{Reason: "file change without packages", Raw: raw}
		}
		return SnapshotEvent{Snapshot: Snapshot{
			Partial:         true,
			Packages:        msg.Packages,
			Edges:           msg.Edges,
			GlobalFunctions: msg.GlobalFunctions,
		}}, nil
	case msg.Packages != nil:
		return SnapshotEvent{Snapshot: Snapshot{
			Packages:        msg.Packages,
			Edges:           msg.Edges,
			GlobalFunctions: msg.GlobalFunctions,
		}}, nil
	default:
		return nil, &ProtocolError{Reason: "unrecognised message", Raw: raw}
	}
}

func hasNullEntry(packages []*structure.Package) bool {
	for _, pkg := range packages {
		if pkg == nil {
			return true
		}
		for _, file := range pkg.Files {
			if file == nil {
				return true
			}
			for _, st := range file.Structs {
				if st == nil {
					return true
				}
			}
		}
	}
	return false
}

// Command is one outbound edit, addressed by the names the watcher knows.
type Command struct {
	Action        structure.IntentKind `json:"action"`
	Package       string               `json:"package"`
	File          string               `json:"file"`
	Name          string               `json:"name,omitempty"`
	Key           *int                 `json:"key,omitempty"`
	MethodIndex   *int                 `json:"methodIndex,omitempty"`
	TypeIndex     *int                 `json:"typeIndex,omitempty"`
	NewName       *string              `json:"newName,omitempty"`
	NewFieldName  *string              `json:"newFieldName,omitempty"`
	NewFieldType  *string              `json:"newFieldType,omitempty"`
	NewMethodName *string              `json:"newMethodName,omitempty"`
	NewReturnType *string              `json:"newReturnType,omitempty"`
}

// CommandFor encodes an intent for the wire.
func CommandFor(intent structure.EditIntent) (Command, error) {
	cmd := Command{
		Action:  intent.Kind,
		Package: intent.Ref.Package,
		File:    intent.Ref.File,
		Name:    intent.Ref.Struct,
	}
	switch intent.Kind {
	case structure.IntentDeleteStruct, structure.IntentAddField:
	case structure.IntentAddStruct:
		cmd.Name = ""
	case structure.IntentRenameStruct:
		cmd.NewName = gut.Ptr(intent.Value)
	case structure.IntentRemoveField:
		cmd.Key = gut.Ptr(intent.Index)
	case structure.IntentRenameField:
		cmd.Key = gut.Ptr(intent.Index)
		cmd.NewFieldName = gut.Ptr(intent.Value)
	case structure.IntentRetypeField:
		cmd.Key = gut.Ptr(intent.Index)
		cmd.NewFieldType = gut.Ptr(intent.Value)
	case structure.IntentRenameMethod:
		cmd.MethodIndex = gut.Ptr(intent.Index)
		cmd.NewMethodName = gut.Ptr(intent.Value)
	case structure.IntentRetypeMethodReturn:
		cmd.MethodIndex = gut.Ptr(intent.Index)
		cmd.TypeIndex = gut.Ptr(intent.TypeIndex)
		cmd.NewReturnType = gut.Ptr(intent.Value)
	default:
		return Command{}, fmt.Errorf("unknown edit intent %q", intent.Kind)
	}
	return cmd, nil
}

// Intent decodes a command back into an edit intent.
func (c Command) Intent() (structure.EditIntent, error) {
	intent := structure.EditIntent{
		Kind: c.Action,
		Ref:  structure.NodeRef{Package: c.Package, File: c.File, Struct: c.Name},
	}
	need := func(field string, v *string) error {
		if v == nil {
			return fmt.Errorf("%s: %s required", c.Action, field)
		}
		intent.Value = *v
		return nil
	}
	index := func(field string, v *int) (int, error) {
		if v == nil {
			return 0, fmt.Errorf("%s: %s required", c.Action, field)
		}
		return *v, nil
	}
	var err error
	switch c.Action {
	case structure.IntentDeleteStruct, structure.IntentAddField, structure.IntentAddStruct:
	case structure.IntentRenameStruct:
		err = need("newName", c.NewName)
	case structure.IntentRemoveField:
		intent.Index, err = index("key", c.Key)
	case structure.IntentRenameField:
		if intent.Index, err = index("key", c.Key); err == nil {
			err = need("newFieldName", c.NewFieldName)
		}
	case structure.IntentRetypeField:
		if intent.Index, err = index("key", c.Key); err == nil {
			err = need("newFieldType", c.NewFieldType)
		}
	case structure.IntentRenameMethod:
		if intent.Index, err = index("methodIndex", c.MethodIndex); err == nil {
			err = need("newMethodName", c.NewMethodName)
		}
	case structure.IntentRetypeMethodReturn:
		if intent.Index, err = index("methodIndex", c.MethodIndex); err == nil {
			if intent.TypeIndex, err = index("typeIndex", c.TypeIndex); err == nil {
				err = need("newReturnType", c.NewReturnType)
			}
		}
	default:
		err = fmt.Errorf("unknown action %q", c.Action)
	}
	if err != nil {
		return structure.EditIntent{}, err
	}
	return intent, nil
}
