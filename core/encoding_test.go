package core

import (
	"bytes"
	"reflect"
	"testing"
)

func TestTransactionDataRoundTripTransfer(t *testing.T) {
	data := transferData(mustAddress(1), mustAddress(2), 10, 20)
	encoded, err := EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransactionData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(data, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, data)
	}
}

func TestTransactionDataRoundTripMoveCall(t *testing.T) {
	call := MoveCall{
		Package:       ObjectRef{ID: FrameworkPackageID, Version: 1},
		Module:        CoinModuleName,
		Function:      FuncSplitVec,
		TypeArgs:      []string{"0x2::sui::SUI"},
		ObjectArgs:    []ObjectRef{{ID: mustObjectID(5), Version: 2}},
		SharedObjArgs: []ObjectID{mustObjectID(6)},
		PureArgs:      [][]byte{EncodeU64Vec([]uint64{10, 20, 30})},
		GasBudget:     500,
	}
	data := TransactionData{
		Kind:       NewSingleTransactionKind(NewCallKind(call)),
		Sender:     mustAddress(1),
		GasPayment: ObjectRef{ID: mustObjectID(99)},
	}
	encoded, err := EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransactionData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(data, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, data)
	}
}

func TestTransactionDataRoundTripBatch(t *testing.T) {
	batch := []SingleTransactionKind{
		NewTransferKind(Transfer{Recipient: mustAddress(2), ObjectRef: ObjectRef{ID: mustObjectID(10)}}),
		NewTransferKind(Transfer{Recipient: mustAddress(3), ObjectRef: ObjectRef{ID: mustObjectID(11)}}),
	}
	data := TransactionData{
		Kind:       NewBatchTransactionKind(batch),
		Sender:     mustAddress(1),
		GasPayment: ObjectRef{ID: mustObjectID(99)},
	}
	encoded, err := EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransactionData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(data, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, data)
	}
}

func TestTransactionEffectsRoundTrip(t *testing.T) {
	eff := TransactionEffects{
		Status:            ExecutionStatus{Tag: ExecutionSuccess, GasUsed: 42, Results: []byte("ok")},
		TransactionDigest: Sha3Digest([]byte("tx")),
		Created:           []RefAndOwner{{Ref: ObjectRef{ID: mustObjectID(1)}, Owner: NewAddressOwner(mustAddress(1))}},
		Mutated:           []RefAndOwner{{Ref: ObjectRef{ID: mustObjectID(2)}, Owner: NewSharedOwner()}},
		Deleted:           []ObjectRef{{ID: mustObjectID(3)}},
		Wrapped:           []ObjectRef{{ID: mustObjectID(4)}},
		GasObject:         RefAndOwner{Ref: ObjectRef{ID: mustObjectID(5)}, Owner: NewObjectOwner(mustObjectID(6))},
		Events:            [][]byte{[]byte("evt1"), []byte("evt2")},
		Dependencies:      []Digest{Sha3Digest([]byte("dep"))},
	}
	encoded, err := EncodeTransactionEffects(eff)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransactionEffects(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(eff, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, eff)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	obj := Object{
		ID:       mustObjectID(1),
		Version:  3,
		Digest:   Sha3Digest([]byte("v3")),
		Kind:     ObjectKindMoveValue,
		Owner:    NewAddressOwner(mustAddress(7)),
		Contents: []byte("coin contents"),
	}
	encoded, err := EncodeObject(obj)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeObject(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(obj, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, obj)
	}
}

func TestEncodeTransactionDataIsDeterministic(t *testing.T) {
	data := transferData(mustAddress(1), mustAddress(2), 10, 20)
	encoded1, err := EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded2, err := EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(encoded1, encoded2) {
		t.Fatalf("expected identical encodings for identical TransactionData")
	}
}
