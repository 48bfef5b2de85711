package core

// temporary_store.go – the per-transaction overlay used while a transaction
// is being locally executed (spec.md §4.4.1 step 4, §4.5 glossary entry
// "temporary store"). Grounded on core/object_store.go's ObjectStore reads
// combined with core/ledger.go's applyBlock pattern of accumulating all of a
// block's mutations in local maps before a single commit — here narrowed to
// one transaction's mutations instead of one block's.

import "fmt"

// TemporaryStore shadows an ObjectStore for the duration of one local
// execution: reads fall through to the backing store unless the id has
// already been written in this transaction, and nothing becomes visible to
// other readers until ObjectStore.Commit applies the accumulated writes
// (spec.md §4.4.1 "local execution must not touch the object store
// directly").
type TemporaryStore struct {
	backing *ObjectStore
	reads   map[ObjectID]Object
	written map[ObjectID]Object
	deleted map[ObjectID]ObjectRef
	wrapped map[ObjectID]ObjectRef
	events  [][]byte
	gasUsed uint64
}

// NewTemporaryStore opens an overlay for a transaction whose InputObjectKind
// list has already been resolved against backing.
func NewTemporaryStore(backing *ObjectStore, inputs []InputObjectKind) (*TemporaryStore, error) {
	ts := &TemporaryStore{
		backing: backing,
		reads:   make(map[ObjectID]Object, len(inputs)),
		written: make(map[ObjectID]Object),
		deleted: make(map[ObjectID]ObjectRef),
		wrapped: make(map[ObjectID]ObjectRef),
	}
	ids := make([]ObjectID, len(inputs))
	for i, k := range inputs {
		ids[i] = k.ID
	}
	objs := backing.GetObjects(ids)
	for i, o := range objs {
		if o == nil {
			if inputs[i].Tag == InputSharedMoveObject || inputs[i].Tag == InputMovePackage {
				return nil, newErr(KindObjectNotFound, nil, "object %s not found", inputs[i].ID.Hex())
			}
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, inputs[i].ID.Hex())
		}
		ts.reads[o.ID] = *o
	}
	return ts, nil
}

// ReadObject returns the current view of id: a pending write in this
// transaction if present, otherwise the resolved input snapshot.
func (ts *TemporaryStore) ReadObject(id ObjectID) (Object, bool) {
	if o, ok := ts.written[id]; ok {
		return o, true
	}
	o, ok := ts.reads[id]
	return o, ok
}

// WriteObject records a mutated or newly created object. The caller is
// responsible for bumping Version and recomputing Digest before calling
// this (spec.md §3 "mutable objects are re-versioned on every mutation").
func (ts *TemporaryStore) WriteObject(o Object) {
	ts.written[o.ID] = o
	delete(ts.deleted, o.ID)
	delete(ts.wrapped, o.ID)
}

// DeleteObject records id as consumed-and-destroyed.
func (ts *TemporaryStore) DeleteObject(ref ObjectRef) {
	ts.deleted[ref.ID] = ref
	delete(ts.written, ref.ID)
}

// WrapObject records id as consumed-and-embedded inside another object,
// distinct from deletion only in the tombstone digest it leaves behind
// (spec.md §3 ObjectDigestWrapped).
func (ts *TemporaryStore) WrapObject(ref ObjectRef) {
	ts.wrapped[ref.ID] = ref
	delete(ts.written, ref.ID)
}

// EmitEvent appends one opaque Move event to the transaction's event log.
func (ts *TemporaryStore) EmitEvent(e []byte) { ts.events = append(ts.events, e) }

// ChargeGas accumulates gas consumed by the execution so far.
func (ts *TemporaryStore) ChargeGas(amount uint64) { ts.gasUsed += amount }

// Writes returns the objects that should be persisted on commit.
func (ts *TemporaryStore) Writes() []Object {
	out := make([]Object, 0, len(ts.written))
	for _, o := range ts.written {
		out = append(out, o)
	}
	return out
}
