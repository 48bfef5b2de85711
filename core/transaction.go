package core

// transaction.go – the transaction data model's public operations (spec.md
// §4.2, component C2): Transaction.CheckSignature, Transaction.Digest,
// Transaction.InputObjects, and the shared/batch helpers consensus routing
// needs. Grounded on core/wallet.go's HDWallet.SignTx (sign-then-hash
// pairing with an Ed25519 key) and core/transactions.go's per-field
// deterministic hashing approach, generalized to hash the canonical RLP
// encoding of TransactionData instead of concatenating fields by hand.

import (
	"fmt"
)

// Digest returns the SHA3-256 digest of tx.Data's canonical encoding.
// Signatures are excluded by construction (spec.md §4.1 "skipping-hash on
// re-sign" design note): adding or changing tx.Sig never changes this value.
func (tx *Transaction) Digest() (Digest, error) {
	if tx.cachedDigest != nil {
		return *tx.cachedDigest, nil
	}
	encoded, err := EncodeTransactionData(tx.Data)
	if err != nil {
		return Digest{}, fmt.Errorf("transaction: encode data: %w", err)
	}
	d := Sha3Digest(encoded)
	tx.cachedDigest = &d
	return d, nil
}

// CheckSignature verifies tx.Sig against tx.Data and, on success, returns a
// VerifiedTransaction capability. It is idempotent: calling it again on an
// already-verified Transaction simply re-verifies (there is no persisted
// "is_checked" flag to short-circuit on — design note §9 replaces that
// pattern with this capability type, which cannot itself be forged or
// deserialized from untrusted input).
func (tx *Transaction) CheckSignature() (VerifiedTransaction, error) {
	encoded, err := EncodeTransactionData(tx.Data)
	if err != nil {
		return VerifiedTransaction{}, fmt.Errorf("transaction: encode data: %w", err)
	}
	obligation := NewVerificationObligation()
	idx := obligation.AddMessage(encoded)
	obligation.Push(idx, tx.Sig)
	if err := obligation.Verify(); err != nil {
		return VerifiedTransaction{}, err
	}
	return VerifiedTransaction{tx: tx}, nil
}

// InputObjects computes the deduplicated list of InputObjectKind the
// transaction reads or mutates, always appending the gas-payment object last
// as an OwnedMoveObject (spec.md §4.2, invariants I1/I3 of §8).
func (tx *Transaction) InputObjects() ([]InputObjectKind, error) {
	return inputObjectsForData(tx.Data)
}

func inputObjectsForData(data TransactionData) ([]InputObjectKind, error) {
	var kinds []InputObjectKind
	switch data.Kind.Tag {
	case TxKindSingle:
		single, err := singleInputObjects(*data.Kind.Single)
		if err != nil {
			return nil, err
		}
		kinds = single
	case TxKindBatch:
		for _, member := range data.Kind.Batch {
			if member.Tag == KindPublish {
				return nil, fmt.Errorf("%w: batch transaction contains a publish member", ErrInvalidBatchTransaction)
			}
			single, err := singleInputObjects(member)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, single...)
		}
	default:
		return nil, fmt.Errorf("transaction: unknown transaction kind tag %d", data.Kind.Tag)
	}

	kinds = append(kinds, NewOwnedMoveObjectInput(data.GasPayment))

	seen := make(map[ObjectID]struct{}, len(kinds))
	for _, k := range kinds {
		if _, dup := seen[k.ID]; dup {
			return nil, fmt.Errorf("%w: object %s appears more than once", ErrDuplicateObjectRefInput, k.ID.Hex())
		}
		seen[k.ID] = struct{}{}
	}
	return kinds, nil
}

func singleInputObjects(k SingleTransactionKind) ([]InputObjectKind, error) {
	switch k.Tag {
	case KindTransfer:
		return []InputObjectKind{NewOwnedMoveObjectInput(k.Transfer.ObjectRef)}, nil
	case KindCall:
		var out []InputObjectKind
		for _, ref := range k.Call.ObjectArgs {
			out = append(out, NewOwnedMoveObjectInput(ref))
		}
		for _, id := range k.Call.SharedObjArgs {
			out = append(out, NewSharedMoveObjectInput(id))
		}
		out = append(out, NewMovePackageInput(k.Call.Package.ID))
		return out, nil
	case KindPublish:
		deps := dependentPackages(k.Publish.Modules)
		out := make([]InputObjectKind, 0, len(deps))
		for _, id := range deps {
			out = append(out, NewMovePackageInput(id))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("transaction: unknown single transaction kind tag %d", k.Tag)
	}
}

// ContainsSharedObject reports whether the transaction touches at least one
// shared object, used by consensus to decide routing (spec.md §4.2).
func (tx *Transaction) ContainsSharedObject() bool {
	kinds, err := tx.InputObjects()
	if err != nil {
		return false
	}
	for _, k := range kinds {
		if k.Tag == InputSharedMoveObject {
			return true
		}
	}
	return false
}

// SharedInputObjects returns just the shared-object input kinds.
func (tx *Transaction) SharedInputObjects() []InputObjectKind {
	kinds, err := tx.InputObjects()
	if err != nil {
		return nil
	}
	var out []InputObjectKind
	for _, k := range kinds {
		if k.Tag == InputSharedMoveObject {
			out = append(out, k)
		}
	}
	return out
}
