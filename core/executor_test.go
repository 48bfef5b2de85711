package core

import (
	"context"
	"testing"
)

func seedObject(t *testing.T, s *ObjectStore, o Object) {
	t.Helper()
	digest := Sha3Digest(append([]byte("seed-"), o.ID[:]...))
	effects := testEffects(digest, []RefAndOwner{{Ref: o.Reference(), Owner: o.Owner}}, nil, nil, ObjectRef{ID: mustObjectID(250)})
	if err := s.Commit([]Object{o}, CertifiedTransaction{}, effects); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
}

func newTempStoreFor(t *testing.T, s *ObjectStore, ids ...ObjectID) *TemporaryStore {
	t.Helper()
	inputs := make([]InputObjectKind, len(ids))
	for i, id := range ids {
		inputs[i] = NewOwnedMoveObjectInput(ObjectRef{ID: id})
	}
	ts, err := NewTemporaryStore(s, inputs)
	if err != nil {
		t.Fatalf("new temp store: %v", err)
	}
	return ts
}

func TestFrameworkExecutorTransferSuccess(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	recipient := mustAddress(2)
	obj := Object{ID: mustObjectID(10), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(100)}
	gas := Object{ID: mustObjectID(20), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, obj)
	seedObject(t, s, gas)

	ts := newTempStoreFor(t, s, obj.ID, gas.ID)
	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewTransferKind(Transfer{Recipient: recipient, ObjectRef: obj.Reference()})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	exec := NewFrameworkExecutor()
	eff, err := exec.Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionSuccess {
		t.Fatalf("expected success, got %+v", eff.Status)
	}
	if len(eff.Mutated) != 2 {
		t.Fatalf("expected object + gas mutated, got %+v", eff.Mutated)
	}
	mutatedObj, ok := ts.ReadObject(obj.ID)
	if !ok || mutatedObj.Owner.Address != recipient {
		t.Fatalf("expected object owner to change to recipient, got %+v", mutatedObj.Owner)
	}
}

func TestFrameworkExecutorTransferFailsOnMissingObject(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	gas := Object{ID: mustObjectID(20), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, gas.ID)

	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewTransferKind(Transfer{Recipient: mustAddress(2), ObjectRef: ObjectRef{ID: mustObjectID(99)}})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionFailure {
		t.Fatalf("expected deterministic failure status, got %+v", eff.Status)
	}
}

func TestFrameworkExecutorSplitVecDistributesAmounts(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	coin := Object{ID: mustObjectID(30), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(100)}
	gas := Object{ID: mustObjectID(40), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, coin)
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, coin.ID, gas.ID)

	call := MoveCall{
		Package:    ObjectRef{ID: FrameworkPackageID},
		Module:     CoinModuleName,
		Function:   FuncSplitVec,
		ObjectArgs: []ObjectRef{coin.Reference()},
		PureArgs:   [][]byte{EncodeU64Vec([]uint64{10, 20, 30})},
	}
	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewCallKind(call)),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionSuccess {
		t.Fatalf("expected success, got %+v", eff.Status)
	}
	if len(eff.Created) != 3 {
		t.Fatalf("expected 3 new coins created, got %d", len(eff.Created))
	}
	for i, ro := range eff.Created {
		obj, ok := ts.ReadObject(ro.Ref.ID)
		if !ok {
			t.Fatalf("created coin %d missing from store", i)
		}
		if obj.Owner.Address != sender {
			t.Fatalf("expected split coins to be owned by sender")
		}
	}
}

func TestFrameworkExecutorSplitVecFailsOnMissingAmounts(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	coin := Object{ID: mustObjectID(30), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(100)}
	gas := Object{ID: mustObjectID(40), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, coin)
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, coin.ID, gas.ID)

	call := MoveCall{
		Package:    ObjectRef{ID: FrameworkPackageID},
		Module:     CoinModuleName,
		Function:   FuncSplitVec,
		ObjectArgs: []ObjectRef{coin.Reference()},
	}
	data := TransactionData{Kind: NewSingleTransactionKind(NewCallKind(call)), Sender: sender, GasPayment: gas.Reference()}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionFailure {
		t.Fatalf("expected failure for missing amounts argument")
	}
}

func TestFrameworkExecutorJoinMergesAndDeletesSecondary(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	primary := Object{ID: mustObjectID(50), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(10)}
	secondary := Object{ID: mustObjectID(51), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(20)}
	gas := Object{ID: mustObjectID(60), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, primary)
	seedObject(t, s, secondary)
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, primary.ID, secondary.ID, gas.ID)

	call := MoveCall{
		Package:    ObjectRef{ID: FrameworkPackageID},
		Module:     CoinModuleName,
		Function:   FuncJoin,
		ObjectArgs: []ObjectRef{primary.Reference(), secondary.Reference()},
	}
	data := TransactionData{Kind: NewSingleTransactionKind(NewCallKind(call)), Sender: sender, GasPayment: gas.Reference()}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionSuccess {
		t.Fatalf("expected success, got %+v", eff.Status)
	}
	if len(eff.Deleted) != 1 || eff.Deleted[0].ID != secondary.ID {
		t.Fatalf("expected secondary coin deleted, got %+v", eff.Deleted)
	}
	merged, ok := ts.ReadObject(primary.ID)
	if !ok {
		t.Fatalf("expected primary coin to still exist")
	}
	if decodeCoinAmount(merged.Contents) != 30 {
		t.Fatalf("expected merged balance 30, got %d", decodeCoinAmount(merged.Contents))
	}
}

func TestFrameworkExecutorUnsupportedCallFailsDeterministically(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	gas := Object{ID: mustObjectID(70), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, gas.ID)

	call := MoveCall{Package: ObjectRef{ID: mustObjectID(123)}, Module: "whatever", Function: "whatever"}
	data := TransactionData{Kind: NewSingleTransactionKind(NewCallKind(call)), Sender: sender, GasPayment: gas.Reference()}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionFailure {
		t.Fatalf("expected deterministic failure, got %+v", eff.Status)
	}
}

func TestFrameworkExecutorPublishFailsOnMissingDependency(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	gas := Object{ID: mustObjectID(80), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, gas.ID)

	module := EncodeModuleForTest([]ObjectID{mustObjectID(200)})
	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewPublishKind(MoveModulePublish{Modules: [][]byte{module}})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionFailure {
		t.Fatalf("expected publish to fail deterministically on missing dependency")
	}
}

func TestFrameworkExecutorPublishSucceedsWithNoDependencies(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	gas := Object{ID: mustObjectID(81), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, gas.ID)

	module := EncodeModuleForTest(nil)
	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewPublishKind(MoveModulePublish{Modules: [][]byte{module}})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	eff, err := NewFrameworkExecutor().Execute(context.Background(), ts, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eff.Status.Tag != ExecutionSuccess {
		t.Fatalf("expected success, got %+v", eff.Status)
	}
	if len(eff.Created) != 1 || eff.Created[0].Owner.Kind != OwnerShared {
		t.Fatalf("expected one shared package object created, got %+v", eff.Created)
	}
}

func TestFrameworkExecutorRespectsContextCancellation(t *testing.T) {
	s, _ := openTestStore(t)
	sender := mustAddress(1)
	gas := Object{ID: mustObjectID(90), Version: 1, Owner: NewAddressOwner(sender), Contents: encodeCoinAmount(1000)}
	seedObject(t, s, gas)
	ts := newTempStoreFor(t, s, gas.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := transferData(sender, mustAddress(2), 10, gas.ID[0])
	if _, err := NewFrameworkExecutor().Execute(ctx, ts, data); err == nil {
		t.Fatalf("expected cancelled context to abort execution")
	}
}

func TestEncodeDecodeU64VecRoundTrip(t *testing.T) {
	amounts := []uint64{1, 2, 3, 1000000}
	encoded := EncodeU64Vec(amounts)
	decoded, err := DecodeU64Vec(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(amounts) {
		t.Fatalf("length mismatch: got %d want %d", len(decoded), len(amounts))
	}
	for i := range amounts {
		if decoded[i] != amounts[i] {
			t.Fatalf("index %d: got %d want %d", i, decoded[i], amounts[i])
		}
	}
}

func TestDecodeU64VecRejectsTruncatedInput(t *testing.T) {
	encoded := EncodeU64Vec([]uint64{1, 2})
	if _, err := DecodeU64Vec(encoded[:len(encoded)-4]); err == nil {
		t.Fatalf("expected truncated input to fail")
	}
}
