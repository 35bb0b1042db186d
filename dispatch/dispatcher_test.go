package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/godiagram/structure"
)

type recordingSender struct {
	sent []structure.EditIntent
	err  error
}

func (r *recordingSender) SendIntent(intent structure.EditIntent) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, intent)
	return nil
}

func model() *structure.Model {
	return (&structure.Model{
		Packages: []*structure.Package{{
			Name: "p",
			Files: []*structure.File{{
				Name: "f",
				Structs: []*structure.Struct{
					{
						Name: "S",
						Fields: []structure.Field{
							{Name: "a", Type: structure.TypeRef{Literal: "int"}},
							{Name: "b", Type: structure.TypeRef{Literal: "string"}},
							{Name: "c", Type: structure.TypeRef{Literal: "bool"}},
						},
					},
					{Name: "T"},
				},
			}},
		}},
	}).Normalize()
}

func setup(t *testing.T) (*Dispatcher, *structure.Store, *recordingSender) {
	t.Helper()
	store := structure.NewStore(nil)
	require.NoError(t, store.Apply(structure.ReplaceModel{Model: model()}))
	sender := &recordingSender{}
	return New(store, sender, nil), store, sender
}

var refS = structure.NodeRef{Package: "p", File: "f", Struct: "S"}

func fieldName(m *structure.Model, i int) string {
	return m.Packages[0].Files[0].Structs[0].Fields[i].Name
}

func TestLiveEditsStayLocalUntilCommit(t *testing.T) {
	d, store, sender := setup(t)
	for _, v := range []string{"i", "id", "ide"} {
		require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 0, Value: v}))
	}
	require.Equal(t, "ide", fieldName(store.Model(), 0))
	require.Empty(t, sender.sent)
	require.Len(t, d.Pending(), 1)
	require.Equal(t, "a", d.Pending()[0].Original)

	require.NoError(t, d.Commit(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 0, Value: "ident"}))
	require.Len(t, sender.sent, 1)
	require.Equal(t, "ident", sender.sent[0].Value)
	require.Empty(t, d.Pending())
}

func TestAbandonRestoresOriginal(t *testing.T) {
	d, store, sender := setup(t)
	intent := structure.EditIntent{Kind: structure.IntentRetypeField, Ref: refS, Index: 1, Value: "[]byte"}
	require.NoError(t, d.Live(intent))
	require.NoError(t, d.Abandon(intent))
	require.Equal(t, "string", store.Model().Packages[0].Files[0].Structs[0].Fields[1].Type.Literal)
	require.Empty(t, sender.sent)
	require.Empty(t, d.Pending())
}

func TestLiveStructRenameSendsAuthoritativeName(t *testing.T) {
	d, store, sender := setup(t)
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameStruct, Ref: refS, Value: "Sv"}))
	local := refS.WithStruct("Sv")
	_, ok := store.Model().Lookup(local)
	require.True(t, ok)

	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameStruct, Ref: local, Value: "Server"}))
	require.Len(t, d.Pending(), 1)

	// Adding a field commits the pending rename first.
	require.NoError(t, d.Structural(structure.EditIntent{Kind: structure.IntentAddField, Ref: refS.WithStruct("Server")}))
	require.Len(t, sender.sent, 2)
	require.Equal(t, structure.IntentRenameStruct, sender.sent[0].Kind)
	require.Equal(t, "S", sender.sent[0].Ref.Struct)
	require.Equal(t, "Server", sender.sent[0].Value)
	require.Equal(t, structure.IntentAddField, sender.sent[1].Kind)
	require.Equal(t, "Server", sender.sent[1].Ref.Struct)
	require.Empty(t, d.Pending())
}

func TestReconcileKeepsLiveEdits(t *testing.T) {
	d, store, _ := setup(t)
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 2, Value: "enabled"}))

	snapshot := model()
	snapshot.Packages[0].Files[0].Structs[0].Fields[0].Name = "alpha"
	require.NoError(t, d.Reconcile(structure.ReplaceModel{Model: snapshot}))

	m := store.Model()
	require.Equal(t, "alpha", fieldName(m, 0))
	require.Equal(t, "enabled", fieldName(m, 2))
	require.Len(t, d.Pending(), 1)
	require.Equal(t, "c", d.Pending()[0].Original)
}

func TestReconcileDropsUnresolvableEdits(t *testing.T) {
	d, store, _ := setup(t)
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 2, Value: "enabled"}))

	snapshot := model()
	snapshot.Packages[0].Files[0].Structs[0].Fields = snapshot.Packages[0].Files[0].Structs[0].Fields[:1]
	require.NoError(t, d.Reconcile(structure.ReplaceModel{Model: snapshot}))
	require.Empty(t, d.Pending())
	require.Len(t, store.Model().Packages[0].Files[0].Structs[0].Fields, 1)
}

func TestRemoveFieldShiftsPendingIndexes(t *testing.T) {
	d, _, _ := setup(t)
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 2, Value: "z"}))
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 0, Value: "x"}))
	require.NoError(t, d.Structural(structure.EditIntent{Kind: structure.IntentRemoveField, Ref: refS, Index: 0}))

	pending := d.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].Leaf.Index)
	require.Equal(t, "z", pending[0].Live)
}

func TestFailedLocalApplySendsNothing(t *testing.T) {
	d, store, sender := setup(t)
	before := store.Model()
	err := d.Dispatch(structure.EditIntent{Kind: structure.IntentRemoveField, Ref: refS, Index: 7})
	var refErr *structure.ReferenceError
	require.ErrorAs(t, err, &refErr)
	require.Empty(t, sender.sent)
	require.Same(t, before, store.Model())
}

func TestSendFailureKeepsLocalChange(t *testing.T) {
	d, store, sender := setup(t)
	sender.err = errors.New("not connected")
	err := d.Dispatch(structure.EditIntent{Kind: structure.IntentDeleteStruct, Ref: refS.WithStruct("T")})
	require.Error(t, err)
	require.Len(t, store.Model().Packages[0].Files[0].Structs, 1)
}

func TestResetClearsPending(t *testing.T) {
	d, store, _ := setup(t)
	require.NoError(t, d.Live(structure.EditIntent{Kind: structure.IntentRenameField, Ref: refS, Index: 0, Value: "x"}))
	d.Reset()
	require.Empty(t, d.Pending())
	require.True(t, store.Model().IsPlaceholder())
}
