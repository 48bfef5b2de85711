package core

// common_structs.go – centralised struct definitions referenced across the
// gateway. This file **declares only data structures** (no methods beyond
// trivial accessors) to avoid cyclic imports; behaviour lives in
// transaction.go, crypto.go, certificate.go, object_store.go and
// gateway_node.go.
// -----------------------------------------------------------------------------

import (
	"encoding/hex"
)

//---------------------------------------------------------------------
// Fixed-width identifiers
//---------------------------------------------------------------------

// Address identifies an account-like owner of objects. 20 bytes, matching
// the teacher's account address width.
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }
func (a Address) Hex() string   { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool  { return a == Address{} }

// ObjectID identifies an object (Move package or Move value) independent of
// its version. 20 bytes.
type ObjectID [20]byte

func (id ObjectID) Bytes() []byte { return id[:] }
func (id ObjectID) Hex() string   { return "0x" + hex.EncodeToString(id[:]) }
func (id ObjectID) IsZero() bool  { return id == ObjectID{} }

// ObjectIDZero is the reserved all-zero object id (framework package owner
// placeholder, transitive-dependency sentinel).
var ObjectIDZero = ObjectID{}

// Digest is a SHA3-256 content hash. 32 bytes. Used both as a
// TransactionDigest (hash of TransactionData) and an ObjectDigest (hash of
// an object's contents at a given version).
type Digest [32]byte

func (d Digest) Bytes() []byte { return d[:] }
func (d Digest) Hex() string   { return "0x" + hex.EncodeToString(d[:]) }
func (d Digest) IsZero() bool  { return d == Digest{} }

// Tombstone digests: recorded in parent_sync for objects that no longer have
// a live entry in the main objects table (I6). These are reserved sentinel
// values, not content hashes — they must match the validator network's
// definitions bit-for-bit (spec.md §6) since clients compare them by
// equality, never by recomputing a hash.
var (
	ObjectDigestDeleted = Digest{0xff}
	ObjectDigestWrapped = Digest{0xfe}
)

// SequenceNumber is an object's version. Monotonically increases on every
// mutation.
type SequenceNumber uint64

// ObjectStartVersion is the version reported for immutable packages and for
// shared objects when used as a uniform InputObjectKind (spec.md §3).
const ObjectStartVersion SequenceNumber = 1

//---------------------------------------------------------------------
// Object references
//---------------------------------------------------------------------

// ObjectRef is the triple (ObjectID, SequenceNumber, ObjectDigest) that
// version-binds a reference to an object (spec.md §3).
type ObjectRef struct {
	ID      ObjectID
	Version SequenceNumber
	Digest  Digest
}

//---------------------------------------------------------------------
// Owners
//---------------------------------------------------------------------

// OwnerKind distinguishes the three ways an object may be owned.
type OwnerKind uint8

const (
	OwnerAddressOwned OwnerKind = iota
	OwnerObjectOwned
	OwnerShared
)

// Owner records who/what controls an object. For OwnerAddressOwned, Address
// holds the controlling account. For OwnerObjectOwned, Object holds the
// controlling object's id. For OwnerShared, neither field is meaningful.
type Owner struct {
	Kind    OwnerKind
	Address Address
	Object  ObjectID
}

func NewAddressOwner(addr Address) Owner { return Owner{Kind: OwnerAddressOwned, Address: addr} }
func NewObjectOwner(id ObjectID) Owner   { return Owner{Kind: OwnerObjectOwned, Object: id} }
func NewSharedOwner() Owner              { return Owner{Kind: OwnerShared} }

func (o Owner) IsAddressOwned() bool { return o.Kind == OwnerAddressOwned }
func (o Owner) IsShared() bool       { return o.Kind == OwnerShared }

//---------------------------------------------------------------------
// Objects
//---------------------------------------------------------------------

// ObjectKind distinguishes immutable Move packages from mutable Move values.
type ObjectKind uint8

const (
	ObjectKindMovePackage ObjectKind = iota
	ObjectKindMoveValue
)

// Object is the unit of state the gateway mirrors locally (spec.md §3).
// Packages are immutable and versioned at ObjectStartVersion; values are
// mutable and re-versioned/re-digested on every mutation.
type Object struct {
	ID       ObjectID
	Version  SequenceNumber
	Digest   Digest
	Kind     ObjectKind
	Owner    Owner
	Contents []byte // opaque Move bytes for values; module bytecode blob for packages
}

func (o *Object) Reference() ObjectRef {
	return ObjectRef{ID: o.ID, Version: o.Version, Digest: o.Digest}
}

//---------------------------------------------------------------------
// Transaction kinds
//---------------------------------------------------------------------

// Transfer moves a single owned object to a new recipient.
type Transfer struct {
	Recipient Address
	ObjectRef ObjectRef
}

// MoveCall invokes a published Move function.
type MoveCall struct {
	Package        ObjectRef
	Module         string
	Function       string
	TypeArgs       []string
	ObjectArgs     []ObjectRef
	SharedObjArgs  []ObjectID
	PureArgs       [][]byte
	GasBudget      uint64
}

// MoveModulePublish publishes one or more compiled Move modules as a new
// immutable package.
type MoveModulePublish struct {
	Modules   [][]byte
	GasBudget uint64
}

// SingleTransactionKindTag discriminates the SingleTransactionKind union.
type SingleTransactionKindTag uint8

const (
	KindTransfer SingleTransactionKindTag = iota
	KindCall
	KindPublish
)

// SingleTransactionKind is a tagged union over {Transfer, MoveCall,
// MoveModulePublish}. Exactly one of the pointer fields matching Tag is
// non-nil.
type SingleTransactionKind struct {
	Tag      SingleTransactionKindTag
	Transfer *Transfer
	Call     *MoveCall
	Publish  *MoveModulePublish
}

func NewTransferKind(t Transfer) SingleTransactionKind {
	return SingleTransactionKind{Tag: KindTransfer, Transfer: &t}
}
func NewCallKind(c MoveCall) SingleTransactionKind {
	return SingleTransactionKind{Tag: KindCall, Call: &c}
}
func NewPublishKind(p MoveModulePublish) SingleTransactionKind {
	return SingleTransactionKind{Tag: KindPublish, Publish: &p}
}

// TransactionKindTag discriminates Single vs Batch.
type TransactionKindTag uint8

const (
	TxKindSingle TransactionKindTag = iota
	TxKindBatch
)

// TransactionKind is either a single transaction kind or a batch of them
// (spec.md §3). A Batch never contains a Publish (invariant I2).
type TransactionKind struct {
	Tag    TransactionKindTag
	Single *SingleTransactionKind
	Batch  []SingleTransactionKind
}

func NewSingleTransactionKind(k SingleTransactionKind) TransactionKind {
	return TransactionKind{Tag: TxKindSingle, Single: &k}
}
func NewBatchTransactionKind(ks []SingleTransactionKind) TransactionKind {
	return TransactionKind{Tag: TxKindBatch, Batch: ks}
}

//---------------------------------------------------------------------
// TransactionData / Transaction / Signed / Certified
//---------------------------------------------------------------------

// TransactionData is the part of a transaction that gets signed and hashed.
// Signatures are intentionally excluded from both (spec.md §3, design note
// "skipping-hash on re-sign").
type TransactionData struct {
	Kind       TransactionKind
	Sender     Address
	GasPayment ObjectRef
}

// Signature is a raw Ed25519 signature plus the signer's public key, so that
// verification never needs an out-of-band key lookup for client signatures.
type Signature struct {
	PublicKey [32]byte
	Bytes     [64]byte
}

// Transaction binds TransactionData to the client's Signature. is_checked is
// deliberately NOT represented as a boolean flag on this type (design note
// §9): a successful check produces a VerifiedTransaction capability instead,
// see CheckSignature in transaction.go.
type Transaction struct {
	Data TransactionData
	Sig  Signature

	cachedDigest *Digest // lazily computed, never serialized
}

// VerifiedTransaction is a phantom-capability wrapper: the only way to
// obtain one is Transaction.CheckSignature(), so a function that requires a
// VerifiedTransaction cannot accidentally be handed unchecked client input.
// It is untrusted across a persistence boundary and must never be
// serialized directly (store the underlying Transaction instead).
type VerifiedTransaction struct {
	tx *Transaction
}

func (v VerifiedTransaction) Unwrap() *Transaction { return v.tx }

// AuthorityName identifies a committee member. Reuses Address's width
// because authorities are, like clients, Ed25519 key holders.
type AuthorityName = Address

// SignedTransaction couples TransactionData to one authority's endorsement
// (spec.md §3). It is the type a lock is held against in C4.
type SignedTransaction struct {
	Data            TransactionData
	AuthorityName   AuthorityName
	AuthoritySig    Signature
}

// CertifiedTransaction is a Transaction plus a quorum of authority
// signatures (spec.md §3, invariant I7). Its Signatures slice makes the Go
// struct non-comparable (== is a compile error), which is exactly the
// static prevention design note §9 asks for: callers cannot accidentally
// value-compare two certificates and must go through Digest() instead (see
// certificate.go).
type CertifiedTransaction struct {
	Tx         Transaction
	Signatures []AuthoritySignature

	cachedDigest *Digest // lazily computed, never serialized
}

// AuthoritySignature is one committee member's endorsement of a
// CertifiedTransaction.
type AuthoritySignature struct {
	Authority AuthorityName
	Sig       Signature
}

//---------------------------------------------------------------------
// Effects
//---------------------------------------------------------------------

// ExecutionStatusTag discriminates ExecutionStatus.
type ExecutionStatusTag uint8

const (
	ExecutionSuccess ExecutionStatusTag = iota
	ExecutionFailure
)

// ExecutionStatus is the deterministic outcome of executing a transaction.
// A Failure still charges gas and still commits (spec.md §7) — it is not a
// gateway error.
type ExecutionStatus struct {
	Tag     ExecutionStatusTag
	GasUsed uint64
	Results []byte // opaque move-call return values, success path only
	Error   string // failure path only
}

// RefAndOwner pairs an object's post-execution reference with its owner, as
// produced for created/mutated/unwrapped entries in TransactionEffects.
type RefAndOwner struct {
	Ref   ObjectRef
	Owner Owner
}

// TransactionEffects is the deterministic record of state transitions
// produced by executing a transaction (spec.md §3).
type TransactionEffects struct {
	Status             ExecutionStatus
	TransactionDigest  Digest
	Created            []RefAndOwner
	Mutated            []RefAndOwner
	Unwrapped          []RefAndOwner
	Deleted            []ObjectRef
	Wrapped            []ObjectRef
	GasObject          RefAndOwner
	Events             [][]byte
	Dependencies       []Digest
}

//---------------------------------------------------------------------
// Input object kinds
//---------------------------------------------------------------------

// InputObjectKindTag discriminates InputObjectKind.
type InputObjectKindTag uint8

const (
	InputMovePackage InputObjectKindTag = iota
	InputOwnedMoveObject
	InputSharedMoveObject
)

// InputObjectKind is one of MovePackage(ObjectID), OwnedMoveObject(ObjectRef)
// or SharedMoveObject(ObjectID) (spec.md §3). Package and shared kinds
// report ObjectStartVersion uniformly so callers can treat all three kinds
// through one (ObjectID, SequenceNumber) lens when they only need a version
// bound, not precise content authentication.
type InputObjectKind struct {
	Tag     InputObjectKindTag
	ID      ObjectID
	Version SequenceNumber // ObjectStartVersion unless Tag == InputOwnedMoveObject
	Digest  Digest         // zero unless Tag == InputOwnedMoveObject
}

func (k InputObjectKind) ObjectID() ObjectID { return k.ID }

func NewMovePackageInput(id ObjectID) InputObjectKind {
	return InputObjectKind{Tag: InputMovePackage, ID: id, Version: ObjectStartVersion}
}
func NewOwnedMoveObjectInput(ref ObjectRef) InputObjectKind {
	return InputObjectKind{Tag: InputOwnedMoveObject, ID: ref.ID, Version: ref.Version, Digest: ref.Digest}
}
func NewSharedMoveObjectInput(id ObjectID) InputObjectKind {
	return InputObjectKind{Tag: InputSharedMoveObject, ID: id, Version: ObjectStartVersion}
}

//---------------------------------------------------------------------
// Object read result (client-facing get_object_info)
//---------------------------------------------------------------------

// ObjectReadTag discriminates ObjectRead.
type ObjectReadTag uint8

const (
	ObjectExists ObjectReadTag = iota
	ObjectDeleted
	ObjectNotExists
)

// ObjectRead is the result of a best-latest object lookup (spec.md §6).
type ObjectRead struct {
	Tag    ObjectReadTag
	Object *Object    // set iff Tag == ObjectExists
	Ref    *ObjectRef // set iff Tag == ObjectDeleted (tombstone reference)
	ID     ObjectID   // always set
}
