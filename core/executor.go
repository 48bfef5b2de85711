package core

// executor.go – the deterministic executor contract (spec.md §1, §4.4.1
// step 4) and FrameworkExecutor, the one concrete executor this gateway
// ships. Grounded on core/contract_management.go's stance toward the Move
// VM: the teacher's ContractManager supervises a deployed contract
// (ownership, pause state, upgrades) without ever interpreting its
// bytecode; FrameworkExecutor keeps that same posture, except the
// "contract" it supervises is the framework coin module that C7 response
// shaping depends on. Arbitrary user Move calls are out of scope (spec.md
// §1 non-goal "executing Move bytecode (delegated)") and return
// ExecutionStatus.Failure rather than attempting interpretation, so the
// gateway's reconciliation step still has a deterministic value to compare
// against the quorum's.

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
)

// sha3Combine hashes the concatenation of parts. Sha3Digest itself takes a
// single buffer; execution routinely needs to bind a digest to more than one
// field (contents + version, or several salt components), so this is purely
// a convenience over bytes.Join.
func sha3Combine(parts ...[]byte) Digest {
	return Sha3Digest(bytes.Join(parts, nil))
}

// FrameworkPackageID is the well-known, reserved id of the framework
// package, analogous to Sui's 0x2. It is never dependent on any other
// package.
var FrameworkPackageID = ObjectID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02}

const (
	CoinModuleName     = "coin"
	FuncSplitVec       = "split_vec"
	FuncJoin           = "join"
	minObjectGas       = 1
)

// Executor runs a transaction's effects deterministically against a
// TemporaryStore (spec.md §4.4.1 step 4). A real deployment plugs in a full
// Move VM; FrameworkExecutor below is the gateway's own minimal, complete
// implementation of the handful of framework operations response shaping
// needs.
type Executor interface {
	Execute(ctx context.Context, store *TemporaryStore, data TransactionData) (TransactionEffects, error)
}

// FrameworkExecutor implements Executor for Transfer, framework
// coin::split_vec / coin::join calls, and Publish. Any other MoveCall
// returns ExecutionStatus.Failure — deterministically, and without
// panicking, matching spec.md §1's treatment of the real VM as an external
// collaborator this gateway only talks about, never replaces.
type FrameworkExecutor struct{}

func NewFrameworkExecutor() *FrameworkExecutor { return &FrameworkExecutor{} }

func (e *FrameworkExecutor) Execute(ctx context.Context, store *TemporaryStore, data TransactionData) (TransactionEffects, error) {
	select {
	case <-ctx.Done():
		return TransactionEffects{}, ctx.Err()
	default:
	}

	switch data.Kind.Tag {
	case TxKindSingle:
		return e.executeSingle(store, data.Sender, data.GasPayment, *data.Kind.Single)
	case TxKindBatch:
		var agg TransactionEffects
		for _, member := range data.Kind.Batch {
			eff, err := e.executeSingle(store, data.Sender, data.GasPayment, member)
			if err != nil {
				return TransactionEffects{}, err
			}
			if eff.Status.Tag == ExecutionFailure {
				return eff, nil
			}
			agg.Created = append(agg.Created, eff.Created...)
			agg.Mutated = append(agg.Mutated, eff.Mutated...)
			agg.Events = append(agg.Events, eff.Events...)
			agg.Status.GasUsed += eff.Status.GasUsed
		}
		agg.Status.Tag = ExecutionSuccess
		agg.GasObject = e.chargeGas(store, data.GasPayment, data.Sender, agg.Status.GasUsed)
		return agg, nil
	default:
		return TransactionEffects{}, fmt.Errorf("executor: unknown transaction kind tag %d", data.Kind.Tag)
	}
}

func (e *FrameworkExecutor) executeSingle(store *TemporaryStore, sender Address, gasRef ObjectRef, k SingleTransactionKind) (TransactionEffects, error) {
	switch k.Tag {
	case KindTransfer:
		return e.executeTransfer(store, sender, gasRef, *k.Transfer)
	case KindCall:
		return e.executeCall(store, sender, gasRef, *k.Call)
	case KindPublish:
		return e.executePublish(store, sender, gasRef, *k.Publish)
	default:
		return TransactionEffects{}, fmt.Errorf("executor: unknown single transaction kind tag %d", k.Tag)
	}
}

func (e *FrameworkExecutor) executeTransfer(store *TemporaryStore, sender Address, gasRef ObjectRef, t Transfer) (TransactionEffects, error) {
	obj, ok := store.ReadObject(t.ObjectRef.ID)
	if !ok {
		return failure("transfer: object not found"), nil
	}
	obj.Version++
	obj.Owner = NewAddressOwner(t.Recipient)
	obj.Digest = sha3Combine(obj.Contents, obj.Version.bytes())
	store.WriteObject(obj)

	var eff TransactionEffects
	eff.Status.Tag = ExecutionSuccess
	eff.Mutated = append(eff.Mutated, RefAndOwner{Ref: obj.Reference(), Owner: obj.Owner})
	eff.GasObject = e.chargeGas(store, gasRef, sender, 10)
	eff.Mutated = append(eff.Mutated, eff.GasObject)
	return eff, nil
}

func (e *FrameworkExecutor) executeCall(store *TemporaryStore, sender Address, gasRef ObjectRef, c MoveCall) (TransactionEffects, error) {
	if c.Package.ID != FrameworkPackageID || c.Module != CoinModuleName {
		return failure(fmt.Sprintf("executor: unsupported call %s::%s", c.Module, c.Function)), nil
	}
	switch c.Function {
	case FuncSplitVec:
		return e.executeSplitVec(store, sender, gasRef, c)
	case FuncJoin:
		return e.executeJoin(store, sender, gasRef, c)
	default:
		return failure(fmt.Sprintf("executor: unsupported coin function %q", c.Function)), nil
	}
}

// DecodeU64Vec decodes the little-endian [u64] pure-argument encoding
// FrameworkExecutor expects for split_vec's amounts argument: one leading
// 4-byte count followed by 8-byte amounts.
func DecodeU64Vec(arg []byte) ([]uint64, error) {
	if len(arg) < 4 {
		return nil, fmt.Errorf("executor: pure arg too short for u64 vec header")
	}
	n := binary.LittleEndian.Uint32(arg[:4])
	need := 4 + int(n)*8
	if len(arg) < need {
		return nil, fmt.Errorf("executor: pure arg too short for %d amounts", n)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(arg[4+i*8:])
	}
	return out, nil
}

// EncodeU64Vec is DecodeU64Vec's inverse, used by callers constructing a
// split_vec MoveCall.
func EncodeU64Vec(amounts []uint64) []byte {
	out := make([]byte, 4+len(amounts)*8)
	binary.LittleEndian.PutUint32(out[:4], uint32(len(amounts)))
	for i, a := range amounts {
		binary.LittleEndian.PutUint64(out[4+i*8:], a)
	}
	return out
}

func (e *FrameworkExecutor) executeSplitVec(store *TemporaryStore, sender Address, gasRef ObjectRef, c MoveCall) (TransactionEffects, error) {
	if len(c.PureArgs) == 0 {
		return failure("split_vec: missing amounts argument"), nil
	}
	amounts, err := DecodeU64Vec(c.PureArgs[0])
	if err != nil {
		return failure(err.Error()), nil
	}
	if len(c.ObjectArgs) != 1 {
		return failure("split_vec: expected exactly one coin object arg"), nil
	}
	coin, ok := store.ReadObject(c.ObjectArgs[0].ID)
	if !ok {
		return failure("split_vec: coin not found"), nil
	}

	coin.Version++
	coin.Digest = sha3Combine(coin.Contents, coin.Version.bytes())
	store.WriteObject(coin)

	var eff TransactionEffects
	eff.Status.Tag = ExecutionSuccess
	eff.Mutated = append(eff.Mutated, RefAndOwner{Ref: coin.Reference(), Owner: coin.Owner})

	for i, amount := range amounts {
		newID := deriveObjectID(coin.ID, coin.Version, uint32(i))
		newCoin := Object{
			ID:       newID,
			Version:  ObjectStartVersion,
			Kind:     ObjectKindMoveValue,
			Owner:    NewAddressOwner(sender),
			Contents: encodeCoinAmount(amount),
		}
		newCoin.Digest = sha3Combine(newCoin.Contents, newCoin.Version.bytes())
		store.WriteObject(newCoin)
		eff.Created = append(eff.Created, RefAndOwner{Ref: newCoin.Reference(), Owner: newCoin.Owner})
	}

	eff.GasObject = e.chargeGas(store, gasRef, sender, 10*uint64(len(amounts)))
	eff.Mutated = append(eff.Mutated, eff.GasObject)
	return eff, nil
}

func (e *FrameworkExecutor) executeJoin(store *TemporaryStore, sender Address, gasRef ObjectRef, c MoveCall) (TransactionEffects, error) {
	if len(c.ObjectArgs) != 2 {
		return failure("join: expected exactly two coin object args"), nil
	}
	primary, ok := store.ReadObject(c.ObjectArgs[0].ID)
	if !ok {
		return failure("join: primary coin not found"), nil
	}
	secondary, ok := store.ReadObject(c.ObjectArgs[1].ID)
	if !ok {
		return failure("join: secondary coin not found"), nil
	}

	total := decodeCoinAmount(primary.Contents) + decodeCoinAmount(secondary.Contents)
	primary.Version++
	primary.Contents = encodeCoinAmount(total)
	primary.Digest = sha3Combine(primary.Contents, primary.Version.bytes())
	store.WriteObject(primary)
	store.DeleteObject(secondary.Reference())

	var eff TransactionEffects
	eff.Status.Tag = ExecutionSuccess
	eff.Mutated = append(eff.Mutated, RefAndOwner{Ref: primary.Reference(), Owner: primary.Owner})
	eff.Deleted = append(eff.Deleted, secondary.Reference())
	eff.GasObject = e.chargeGas(store, gasRef, sender, 8)
	eff.Mutated = append(eff.Mutated, eff.GasObject)
	return eff, nil
}

func (e *FrameworkExecutor) executePublish(store *TemporaryStore, sender Address, gasRef ObjectRef, p MoveModulePublish) (TransactionEffects, error) {
	for _, m := range p.Modules {
		if _, ok := moduleDependencies(m); !ok {
			return failure("publish: malformed module"), nil
		}
	}
	deps := dependentPackages(p.Modules)
	for _, d := range deps {
		if _, ok := store.ReadObject(d); !ok {
			return failure(fmt.Sprintf("publish: dependent package %s not found", d.Hex())), nil
		}
	}

	pkgID := deriveObjectID(gasRef.ID, gasRef.Version, 0xffffffff)
	pkg := Object{
		ID:       pkgID,
		Version:  ObjectStartVersion,
		Kind:     ObjectKindMovePackage,
		Owner:    NewSharedOwner(),
		Contents: flattenModules(p.Modules),
	}
	pkg.Digest = Sha3Digest(pkg.Contents)
	store.WriteObject(pkg)

	var eff TransactionEffects
	eff.Status.Tag = ExecutionSuccess
	eff.Created = append(eff.Created, RefAndOwner{Ref: pkg.Reference(), Owner: pkg.Owner})
	eff.GasObject = e.chargeGas(store, gasRef, sender, 50)
	eff.Mutated = append(eff.Mutated, eff.GasObject)
	return eff, nil
}

func (e *FrameworkExecutor) chargeGas(store *TemporaryStore, gasRef ObjectRef, owner Address, amount uint64) RefAndOwner {
	gas, ok := store.ReadObject(gasRef.ID)
	if !ok {
		gas = Object{ID: gasRef.ID, Version: gasRef.Version, Owner: NewAddressOwner(owner)}
	}
	gas.Version++
	balance := decodeCoinAmount(gas.Contents)
	if balance >= amount {
		balance -= amount
	} else {
		balance = 0
	}
	gas.Contents = encodeCoinAmount(balance)
	gas.Digest = sha3Combine(gas.Contents, gas.Version.bytes())
	store.WriteObject(gas)
	store.ChargeGas(amount)
	return RefAndOwner{Ref: gas.Reference(), Owner: gas.Owner}
}

func failure(reason string) TransactionEffects {
	return TransactionEffects{Status: ExecutionStatus{Tag: ExecutionFailure, Error: reason}}
}

func (v SequenceNumber) bytes() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

// deriveObjectID is a deterministic, collision-resistant id generator for
// objects created during execution (new coins from a split, a freshly
// published package): a function of the creating transaction's consumed
// input, its post-mutation version, and a small per-call salt so that a
// single call producing several objects does not collide with itself.
func deriveObjectID(parent ObjectID, version SequenceNumber, salt uint32) ObjectID {
	var saltBytes [4]byte
	binary.LittleEndian.PutUint32(saltBytes[:], salt)
	digest := sha3Combine(parent[:], version.bytes(), saltBytes[:])
	var id ObjectID
	copy(id[:], digest[:20])
	return id
}

func encodeCoinAmount(amount uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], amount)
	return b[:]
}

func decodeCoinAmount(contents []byte) uint64 {
	if len(contents) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(contents)
}

func flattenModules(modules [][]byte) []byte {
	var out []byte
	for _, m := range modules {
		var lenBytes [4]byte
		binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(m)))
		out = append(out, lenBytes[:]...)
		out = append(out, m...)
	}
	return out
}
