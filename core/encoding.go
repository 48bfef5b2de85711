package core

// encoding.go – canonical binary encoding for the data-model types that get
// signed, hashed or persisted. Grounded on the teacher's use of
// github.com/ethereum/go-ethereum/rlp in core/ledger.go (block WAL/snapshot
// records), generalized from block encoding to transaction/object encoding.
//
// RLP does not by itself give a stable encoding for a tagged union
// represented as a Go struct with several mutually-exclusive pointer fields
// (a nil pointer's RLP shape depends on the pointee type). To keep the
// encode/decode round trip exact (spec.md §8 law 7) the "wire" shadow
// structs below always carry every variant's field, populated with its zero
// value when unused, and only the explicit Tag says which one is live. This
// mirrors how the original system's BCS union encoding works: the tag
// selects the variant, the bytes for every variant are structurally present
// in the schema even though only one is meaningful per value.

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

type wireObjectRef struct {
	ID      ObjectID
	Version uint64
	Digest  Digest
}

func toWireRef(r ObjectRef) wireObjectRef {
	return wireObjectRef{ID: r.ID, Version: uint64(r.Version), Digest: r.Digest}
}
func fromWireRef(w wireObjectRef) ObjectRef {
	return ObjectRef{ID: w.ID, Version: SequenceNumber(w.Version), Digest: w.Digest}
}

type wireTransfer struct {
	Recipient Address
	ObjectRef wireObjectRef
}

type wireMoveCall struct {
	Package       wireObjectRef
	Module        string
	Function      string
	TypeArgs      []string
	ObjectArgs    []wireObjectRef
	SharedObjArgs []ObjectID
	PureArgs      [][]byte
	GasBudget     uint64
}

type wireMoveModulePublish struct {
	Modules   [][]byte
	GasBudget uint64
}

type wireSingleTransactionKind struct {
	Tag      uint8
	Transfer wireTransfer
	Call     wireMoveCall
	Publish  wireMoveModulePublish
}

func toWireSingle(k SingleTransactionKind) wireSingleTransactionKind {
	w := wireSingleTransactionKind{Tag: uint8(k.Tag)}
	switch k.Tag {
	case KindTransfer:
		w.Transfer = wireTransfer{Recipient: k.Transfer.Recipient, ObjectRef: toWireRef(k.Transfer.ObjectRef)}
	case KindCall:
		objArgs := make([]wireObjectRef, len(k.Call.ObjectArgs))
		for i, r := range k.Call.ObjectArgs {
			objArgs[i] = toWireRef(r)
		}
		w.Call = wireMoveCall{
			Package:       toWireRef(k.Call.Package),
			Module:        k.Call.Module,
			Function:      k.Call.Function,
			TypeArgs:      k.Call.TypeArgs,
			ObjectArgs:    objArgs,
			SharedObjArgs: k.Call.SharedObjArgs,
			PureArgs:      k.Call.PureArgs,
			GasBudget:     k.Call.GasBudget,
		}
	case KindPublish:
		w.Publish = wireMoveModulePublish{Modules: k.Publish.Modules, GasBudget: k.Publish.GasBudget}
	}
	return w
}

func fromWireSingle(w wireSingleTransactionKind) (SingleTransactionKind, error) {
	switch SingleTransactionKindTag(w.Tag) {
	case KindTransfer:
		return NewTransferKind(Transfer{Recipient: w.Transfer.Recipient, ObjectRef: fromWireRef(w.Transfer.ObjectRef)}), nil
	case KindCall:
		objArgs := make([]ObjectRef, len(w.Call.ObjectArgs))
		for i, r := range w.Call.ObjectArgs {
			objArgs[i] = fromWireRef(r)
		}
		return NewCallKind(MoveCall{
			Package:       fromWireRef(w.Call.Package),
			Module:        w.Call.Module,
			Function:      w.Call.Function,
			TypeArgs:      w.Call.TypeArgs,
			ObjectArgs:    objArgs,
			SharedObjArgs: w.Call.SharedObjArgs,
			PureArgs:      w.Call.PureArgs,
			GasBudget:     w.Call.GasBudget,
		}), nil
	case KindPublish:
		return NewPublishKind(MoveModulePublish{Modules: w.Publish.Modules, GasBudget: w.Publish.GasBudget}), nil
	default:
		return SingleTransactionKind{}, fmt.Errorf("encoding: unknown SingleTransactionKind tag %d", w.Tag)
	}
}

type wireTransactionKind struct {
	Tag    uint8
	Single wireSingleTransactionKind
	Batch  []wireSingleTransactionKind
}

type wireTransactionData struct {
	Kind       wireTransactionKind
	Sender     Address
	GasPayment wireObjectRef
}

func toWireData(d TransactionData) wireTransactionData {
	wk := wireTransactionKind{Tag: uint8(d.Kind.Tag)}
	switch d.Kind.Tag {
	case TxKindSingle:
		wk.Single = toWireSingle(*d.Kind.Single)
	case TxKindBatch:
		wk.Batch = make([]wireSingleTransactionKind, len(d.Kind.Batch))
		for i, m := range d.Kind.Batch {
			wk.Batch[i] = toWireSingle(m)
		}
	}
	return wireTransactionData{Kind: wk, Sender: d.Sender, GasPayment: toWireRef(d.GasPayment)}
}

func fromWireData(w wireTransactionData) (TransactionData, error) {
	var kind TransactionKind
	switch TransactionKindTag(w.Kind.Tag) {
	case TxKindSingle:
		single, err := fromWireSingle(w.Kind.Single)
		if err != nil {
			return TransactionData{}, err
		}
		kind = NewSingleTransactionKind(single)
	case TxKindBatch:
		members := make([]SingleTransactionKind, len(w.Kind.Batch))
		for i, m := range w.Kind.Batch {
			single, err := fromWireSingle(m)
			if err != nil {
				return TransactionData{}, err
			}
			members[i] = single
		}
		kind = NewBatchTransactionKind(members)
	default:
		return TransactionData{}, fmt.Errorf("encoding: unknown TransactionKind tag %d", w.Kind.Tag)
	}
	return TransactionData{Kind: kind, Sender: w.Sender, GasPayment: fromWireRef(w.GasPayment)}, nil
}

// EncodeTransactionData returns the canonical binary encoding of data. This
// is the exact byte string that gets hashed for TransactionDigest and signed
// by clients/authorities (spec.md §4.1).
func EncodeTransactionData(data TransactionData) ([]byte, error) {
	return rlp.EncodeToBytes(toWireData(data))
}

// DecodeTransactionData inverts EncodeTransactionData.
func DecodeTransactionData(b []byte) (TransactionData, error) {
	var w wireTransactionData
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return TransactionData{}, fmt.Errorf("encoding: decode TransactionData: %w", err)
	}
	return fromWireData(w)
}

type wireRefAndOwner struct {
	Ref       wireObjectRef
	OwnerKind uint8
	Address   Address
	Object    ObjectID
}

func toWireRO(ro RefAndOwner) wireRefAndOwner {
	return wireRefAndOwner{Ref: toWireRef(ro.Ref), OwnerKind: uint8(ro.Owner.Kind), Address: ro.Owner.Address, Object: ro.Owner.Object}
}
func fromWireRO(w wireRefAndOwner) RefAndOwner {
	return RefAndOwner{Ref: fromWireRef(w.Ref), Owner: Owner{Kind: OwnerKind(w.OwnerKind), Address: w.Address, Object: w.Object}}
}

type wireExecutionStatus struct {
	Tag     uint8
	GasUsed uint64
	Results []byte
	Error   string
}

type wireTransactionEffects struct {
	Status            wireExecutionStatus
	TransactionDigest Digest
	Created           []wireRefAndOwner
	Mutated           []wireRefAndOwner
	Unwrapped         []wireRefAndOwner
	Deleted           []wireObjectRef
	Wrapped           []wireObjectRef
	GasObject         wireRefAndOwner
	Events            [][]byte
	Dependencies      []Digest
}

func toWireRefs(rs []ObjectRef) []wireObjectRef {
	out := make([]wireObjectRef, len(rs))
	for i, r := range rs {
		out[i] = toWireRef(r)
	}
	return out
}
func fromWireRefs(ws []wireObjectRef) []ObjectRef {
	out := make([]ObjectRef, len(ws))
	for i, w := range ws {
		out[i] = fromWireRef(w)
	}
	return out
}
func toWireROs(rs []RefAndOwner) []wireRefAndOwner {
	out := make([]wireRefAndOwner, len(rs))
	for i, r := range rs {
		out[i] = toWireRO(r)
	}
	return out
}
func fromWireROs(ws []wireRefAndOwner) []RefAndOwner {
	out := make([]RefAndOwner, len(ws))
	for i, w := range ws {
		out[i] = fromWireRO(w)
	}
	return out
}

// EncodeTransactionEffects returns the canonical binary encoding of effects.
// The gateway compares local and quorum effects through this encoding and
// the HTTP authority transport carries effects in it. No signature in this
// module is computed over it: authority signatures cover the TransactionData
// encoding.
func EncodeTransactionEffects(e TransactionEffects) ([]byte, error) {
	w := wireTransactionEffects{
		Status: wireExecutionStatus{
			Tag: uint8(e.Status.Tag), GasUsed: e.Status.GasUsed,
			Results: e.Status.Results, Error: e.Status.Error,
		},
		TransactionDigest: e.TransactionDigest,
		Created:           toWireROs(e.Created),
		Mutated:           toWireROs(e.Mutated),
		Unwrapped:         toWireROs(e.Unwrapped),
		Deleted:           toWireRefs(e.Deleted),
		Wrapped:           toWireRefs(e.Wrapped),
		GasObject:         toWireRO(e.GasObject),
		Events:            e.Events,
		Dependencies:      e.Dependencies,
	}
	return rlp.EncodeToBytes(w)
}

// DecodeTransactionEffects inverts EncodeTransactionEffects.
func DecodeTransactionEffects(b []byte) (TransactionEffects, error) {
	var w wireTransactionEffects
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return TransactionEffects{}, fmt.Errorf("encoding: decode TransactionEffects: %w", err)
	}
	return TransactionEffects{
		Status: ExecutionStatus{
			Tag: ExecutionStatusTag(w.Status.Tag), GasUsed: w.Status.GasUsed,
			Results: w.Status.Results, Error: w.Status.Error,
		},
		TransactionDigest: w.TransactionDigest,
		Created:           fromWireROs(w.Created),
		Mutated:           fromWireROs(w.Mutated),
		Unwrapped:         fromWireROs(w.Unwrapped),
		Deleted:           fromWireRefs(w.Deleted),
		Wrapped:           fromWireRefs(w.Wrapped),
		GasObject:         fromWireRO(w.GasObject),
		Events:            w.Events,
		Dependencies:      w.Dependencies,
	}, nil
}

// EncodeObject returns the canonical binary encoding of an Object, the form
// in which the HTTP authority transport (core/authority) carries objects.
func EncodeObject(o Object) ([]byte, error) {
	return rlp.EncodeToBytes(struct {
		ID       ObjectID
		Version  uint64
		Digest   Digest
		Kind     uint8
		OwnerK   uint8
		OwnerA   Address
		OwnerO   ObjectID
		Contents []byte
	}{
		ID: o.ID, Version: uint64(o.Version), Digest: o.Digest, Kind: uint8(o.Kind),
		OwnerK: uint8(o.Owner.Kind), OwnerA: o.Owner.Address, OwnerO: o.Owner.Object,
		Contents: o.Contents,
	})
}

// DecodeObject inverts EncodeObject.
func DecodeObject(b []byte) (Object, error) {
	var w struct {
		ID       ObjectID
		Version  uint64
		Digest   Digest
		Kind     uint8
		OwnerK   uint8
		OwnerA   Address
		OwnerO   ObjectID
		Contents []byte
	}
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Object{}, fmt.Errorf("encoding: decode Object: %w", err)
	}
	return Object{
		ID: w.ID, Version: SequenceNumber(w.Version), Digest: w.Digest, Kind: ObjectKind(w.Kind),
		Owner:    Owner{Kind: OwnerKind(w.OwnerK), Address: w.OwnerA, Object: w.OwnerO},
		Contents: w.Contents,
	}, nil
}
