package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/lexcodex/godiagram/structure"
)

// Sender delivers a committed intent to the watcher.
type Sender interface {
	SendIntent(intent structure.EditIntent) error
}

// PendingEdit is a text edit the user is still typing. Leaf addresses the
// slot by the names the watcher knows; Original is the value to restore on
// abandon and Live the text currently shown.
type PendingEdit struct {
	Leaf     structure.Leaf
	Original string
	Live     string
	seq      int
}

// Dispatcher applies edit intents to the store and forwards committed ones to
// the watcher. Live edits stay local until committed and survive incoming
// snapshots. It is not safe for concurrent use.
type Dispatcher struct {
	store   *structure.Store
	sender  Sender
	logger  *log.Logger
	pending map[structure.Leaf]*PendingEdit
	seq     int
}

// New builds a dispatcher over store.
func New(store *structure.Store, sender Sender, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{
		store:   store,
		sender:  sender,
		logger:  logger,
		pending: make(map[structure.Leaf]*PendingEdit),
	}
}

// Dispatch routes an intent: text intents are committed, structural ones
// applied and sent immediately.
func (d *Dispatcher) Dispatch(intent structure.EditIntent) error {
	if intent.IsText() {
		return d.Commit(intent)
	}
	return d.Structural(intent)
}

// Live applies a text edit locally without sending it. intent.Ref uses the
// names shown in the current model.
func (d *Dispatcher) Live(intent structure.EditIntent) error {
	if !intent.IsText() {
		return fmt.Errorf("%s has no live phase", intent.Kind)
	}
	leaf := d.authoritative(intent).Leaf()
	edit, ok := d.pending[leaf]
	if !ok {
		original, err := structure.LeafValue(d.store.Model(), intent.Leaf())
		if err != nil {
			return err
		}
		d.seq++
		edit = &PendingEdit{Leaf: leaf, Original: original, seq: d.seq}
	}
	if err := d.applyLocal(intent); err != nil {
		return err
	}
	edit.Live = intent.Value
	d.pending[leaf] = edit
	return nil
}

// Commit applies the final value of a text edit and sends it.
func (d *Dispatcher) Commit(intent structure.EditIntent) error {
	if !intent.IsText() {
		return fmt.Errorf("%s is not a text edit", intent.Kind)
	}
	wire := d.authoritative(intent)
	if err := d.applyLocal(intent); err != nil {
		return err
	}
	leaf := wire.Leaf()
	delete(d.pending, leaf)
	if intent.Kind == structure.IntentRenameStruct {
		d.rekey(leaf.Ref, intent.Value)
	}
	return d.send(wire)
}

// Abandon drops a live edit and restores the value it replaced. intent.Ref
// uses the names shown in the current model; Value is ignored.
func (d *Dispatcher) Abandon(intent structure.EditIntent) error {
	leaf := d.authoritative(intent).Leaf()
	edit, ok := d.pending[leaf]
	if !ok {
		return nil
	}
	delete(d.pending, leaf)
	restore := intent.Leaf().Intent(edit.Original)
	if err := d.applyLocal(restore); err != nil {
		return fmt.Errorf("restore %s: %w", leaf, err)
	}
	return nil
}

// Structural applies and sends a structural intent. A pending rename of the
// same struct is committed first so the watcher sees a consistent name.
func (d *Dispatcher) Structural(intent structure.EditIntent) error {
	if intent.IsText() {
		return fmt.Errorf("%s is a text edit", intent.Kind)
	}
	if intent.Ref.Struct != "" {
		if rename, ok := d.pendingRename(intent.Ref); ok {
			commit := structure.EditIntent{
				Kind:  structure.IntentRenameStruct,
				Ref:   intent.Ref,
				Value: rename.Live,
			}
			if err := d.Commit(commit); err != nil {
				return fmt.Errorf("commit pending rename: %w", err)
			}
		}
	}
	if err := d.applyLocal(intent); err != nil {
		return err
	}
	switch intent.Kind {
	case structure.IntentRemoveField:
		d.shiftFields(intent.Ref, intent.Index)
	case structure.IntentDeleteStruct:
		d.dropStruct(intent.Ref)
	}
	return d.send(intent)
}

// Reconcile applies an authoritative change (normally a snapshot) and then
// re-applies the pending live edits on top of it. Pending edits that no
// longer resolve are dropped.
func (d *Dispatcher) Reconcile(t structure.Transformation) error {
	if err := d.store.Apply(t); err != nil {
		return err
	}
	base := d.store.Model()
	edits := d.Pending()
	// Struct renames go last so field and method edits still resolve by the
	// authoritative struct name.
	sort.SliceStable(edits, func(i, j int) bool {
		ri := edits[i].Leaf.Kind == structure.IntentRenameStruct
		rj := edits[j].Leaf.Kind == structure.IntentRenameStruct
		return !ri && rj
	})
	overlay := make([]structure.Transformation, 0, len(edits))
	for _, edit := range edits {
		original, err := structure.LeafValue(base, edit.Leaf)
		if err != nil {
			d.logger.Printf("dispatch: dropping pending %s: %v", edit.Leaf, err)
			delete(d.pending, edit.Leaf)
			continue
		}
		d.pending[edit.Leaf].Original = original
		tr, err := edit.Leaf.Intent(edit.Live).Transformation()
		if err != nil {
			delete(d.pending, edit.Leaf)
			continue
		}
		overlay = append(overlay, tr)
	}
	next, failed := structure.Overlay(base, overlay)
	for i, err := range failed {
		leaf := leafOf(overlay[i])
		d.logger.Printf("dispatch: dropping pending %s: %v", leaf, err)
		delete(d.pending, leaf)
	}
	if len(overlay) > 0 && !d.store.Swap(base, next) {
		return errors.New("model changed during reconcile")
	}
	return nil
}

// Reset clears the model and every pending edit.
func (d *Dispatcher) Reset() {
	d.store.Reset()
	d.pending = make(map[structure.Leaf]*PendingEdit)
}

// Pending lists live edits in the order they were started.
func (d *Dispatcher) Pending() []PendingEdit {
	out := make([]PendingEdit, 0, len(d.pending))
	for _, edit := range d.pending {
		out = append(out, *edit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (d *Dispatcher) applyLocal(intent structure.EditIntent) error {
	t, err := intent.Transformation()
	if err != nil {
		return err
	}
	return d.store.Apply(t)
}

func (d *Dispatcher) send(intent structure.EditIntent) error {
	if d.sender == nil {
		return errors.New("no watcher connection")
	}
	if err := d.sender.SendIntent(intent); err != nil {
		d.logger.Printf("dispatch: %s %s not sent: %v", intent.Kind, intent.Ref, err)
		return err
	}
	return nil
}

// authoritative rewrites a locally named ref to the name the watcher knows
// when its struct has a pending rename.
func (d *Dispatcher) authoritative(intent structure.EditIntent) structure.EditIntent {
	if intent.Ref.Struct == "" {
		return intent
	}
	if rename, ok := d.pendingRename(intent.Ref); ok {
		intent.Ref = rename.Leaf.Ref
	}
	return intent
}

// pendingRename finds the pending rename whose live value is the struct local
// names.
func (d *Dispatcher) pendingRename(local structure.NodeRef) (*PendingEdit, bool) {
	for leaf, edit := range d.pending {
		if leaf.Kind != structure.IntentRenameStruct {
			continue
		}
		if leaf.Ref.Package == local.Package && leaf.Ref.File == local.File && edit.Live == local.Struct {
			return edit, true
		}
	}
	return nil, false
}

// rekey moves pending edits of a renamed struct to its new name.
func (d *Dispatcher) rekey(old structure.NodeRef, name string) {
	for leaf, edit := range d.pending {
		if leaf.Ref != old {
			continue
		}
		delete(d.pending, leaf)
		leaf.Ref = old.WithStruct(name)
		edit.Leaf = leaf
		d.pending[leaf] = edit
	}
}

func (d *Dispatcher) shiftFields(ref structure.NodeRef, removed int) {
	moved := make(map[structure.Leaf]*PendingEdit)
	for leaf, edit := range d.pending {
		if leaf.Ref != ref || (leaf.Kind != structure.IntentRenameField && leaf.Kind != structure.IntentRetypeField) {
			continue
		}
		delete(d.pending, leaf)
		switch {
		case leaf.Index == removed:
			continue
		case leaf.Index > removed:
			leaf.Index--
		}
		edit.Leaf = leaf
		moved[leaf] = edit
	}
	for leaf, edit := range moved {
		d.pending[leaf] = edit
	}
}

func (d *Dispatcher) dropStruct(ref structure.NodeRef) {
	for leaf := range d.pending {
		if leaf.Ref == ref {
			delete(d.pending, leaf)
		}
	}
}

func leafOf(t structure.Transformation) structure.Leaf {
	switch t := t.(type) {
	case structure.RenameStruct:
		return structure.Leaf{Kind: structure.IntentRenameStruct, Ref: t.Ref}
	case structure.RenameField:
		return structure.Leaf{Kind: structure.IntentRenameField, Ref: t.Ref, Index: t.Index}
	case structure.RetypeField:
		return structure.Leaf{Kind: structure.IntentRetypeField, Ref: t.Ref, Index: t.Index}
	case structure.RenameMethod:
		return structure.Leaf{Kind: structure.IntentRenameMethod, Ref: t.Ref, Index: t.Index}
	case structure.RetypeMethodReturn:
		return structure.Leaf{Kind: structure.IntentRetypeMethodReturn, Ref: t.Ref, Index: t.Index, TypeIndex: t.TypeIndex}
	default:
		return structure.Leaf{}
	}
}
