package core

// crypto.go – the crypto envelope (spec.md §4.1): signing, verification, a
// batched verification-obligation accumulator, and content hashing.
//
// Grounded on core/wallet.go's existing Ed25519 usage
// (HDWallet.PrivateKey/SignTx already sign a transaction hash with
// crypto/ed25519) generalized from the teacher's account Transaction to the
// gateway's TransactionData/TransactionEffects envelopes, and on
// golang.org/x/crypto/sha3 for SHA3-256 digests (the same x/crypto module
// core/wallet.go already depends on for ripemd160).

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Sha3Digest returns the SHA3-256 digest of b.
func Sha3Digest(b []byte) Digest {
	return Digest(sha3.Sum256(b))
}

// Sign produces an Ed25519 Signature over content using priv.
func Sign(content []byte, priv ed25519.PrivateKey) (Signature, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Signature{}, errors.New("crypto: malformed private key")
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return Signature{}, errors.New("crypto: malformed public key")
	}
	sig := ed25519.Sign(priv, content)
	var out Signature
	copy(out.PublicKey[:], pub)
	copy(out.Bytes[:], sig)
	return out, nil
}

// Verify checks that sig is a valid Ed25519 signature over message by the
// key embedded in sig.
func Verify(message []byte, sig Signature) error {
	if !ed25519.Verify(sig.PublicKey[:], message, sig.Bytes[:]) {
		return fmt.Errorf("%w: ed25519 verification failed", ErrInvalidSignature)
	}
	return nil
}

// VerifyWithKey checks sig against an explicitly supplied public key,
// ignoring the key embedded in sig. The certificate aggregator verifies
// authority signatures this way, against the key the committee holds for
// that authority name, rather than trusting whatever key the wire signature
// claims.
func VerifyWithKey(message []byte, sig Signature, pub ed25519.PublicKey) error {
	if !ed25519.Verify(pub, message, sig.Bytes[:]) {
		return fmt.Errorf("%w: ed25519 verification failed", ErrInvalidSignature)
	}
	return nil
}

//---------------------------------------------------------------------
// Verification obligation: batched accumulator
//---------------------------------------------------------------------

// obligationEntry is one (message, key, signature) triple queued for batch
// verification.
type obligationEntry struct {
	messageIndex int
	publicKey    ed25519.PublicKey
	sig          Signature
}

// VerificationObligation accumulates (message, public_key, signature)
// triples and verifies them together. Messages are deduplicated: pushing the
// same message bytes twice reuses the earlier message_index instead of
// storing the bytes again, so many authorities signing one TransactionData
// value verify against one buffer (spec.md §4.1, design note "batched
// verification").
//
// Grounded on the mutex-guarded accumulator shape of core/quorum_tracker.go,
// generalized from a vote-set to a signature-set.
type VerificationObligation struct {
	messages  [][]byte
	index     map[string]int
	entries   []obligationEntry
}

// NewVerificationObligation returns an empty accumulator.
func NewVerificationObligation() *VerificationObligation {
	return &VerificationObligation{index: make(map[string]int)}
}

// AddMessage registers message and returns its message_index, reusing an
// existing index if the same bytes were already added.
func (vo *VerificationObligation) AddMessage(message []byte) int {
	key := string(message)
	if idx, ok := vo.index[key]; ok {
		return idx
	}
	idx := len(vo.messages)
	vo.messages = append(vo.messages, message)
	vo.index[key] = idx
	return idx
}

// Push queues a signature to be checked against the public key embedded in
// sig for the message at messageIndex (obtained from AddMessage).
func (vo *VerificationObligation) Push(messageIndex int, sig Signature) {
	vo.entries = append(vo.entries, obligationEntry{messageIndex: messageIndex, publicKey: sig.PublicKey[:], sig: sig})
}

// PushWithKey queues a signature to be checked against an explicitly
// supplied public key rather than the one embedded in sig.
func (vo *VerificationObligation) PushWithKey(messageIndex int, pub ed25519.PublicKey, sig Signature) {
	vo.entries = append(vo.entries, obligationEntry{messageIndex: messageIndex, publicKey: pub, sig: sig})
}

// Verify runs every queued entry. Ed25519 has no native multi-signature
// aggregation primitive in the standard library, so "batched" here means one
// pass over deduplicated messages rather than one cryptographic aggregate
// check; the saving comes entirely from not re-verifying identical messages
// once per authority.
func (vo *VerificationObligation) Verify() error {
	for _, e := range vo.entries {
		if e.messageIndex < 0 || e.messageIndex >= len(vo.messages) {
			return fmt.Errorf("crypto: obligation entry references unknown message index %d", e.messageIndex)
		}
		if !ed25519.Verify(e.publicKey, vo.messages[e.messageIndex], e.sig.Bytes[:]) {
			return fmt.Errorf("%w: batched verification failed for message %d", ErrInvalidSignature, e.messageIndex)
		}
	}
	return nil
}

// Len reports how many signature entries are queued.
func (vo *VerificationObligation) Len() int { return len(vo.entries) }
