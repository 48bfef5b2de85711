package core

// certificate.go – the quorum-based certificate aggregator (spec.md §4.3,
// component C3). Grounded on core/quorum_tracker.go's QuorumTracker
// (mutex-guarded vote set, duplicate-vote rejection, threshold check)
// generalized from one-address-one-vote to weighted voting rights summed
// against a 2f+1-of-3f+1 threshold (invariant I3), the way
// core/consensus_weights.go treats voting power as a weighted quantity
// rather than a headcount.

import (
	"sync"
)

// Committee is the set of authorities and their voting weight. Weight is
// typically "stake" or an equal per-authority share; the aggregator only
// needs the sum and the per-authority amount.
type Committee struct {
	Weights map[AuthorityName]uint64
	Keys    map[AuthorityName][32]byte // authority public keys, for signature verification
	total   uint64
}

// NewCommittee builds a Committee from weights and public keys. Authorities
// present in weights but absent from keys cannot be verified and are
// treated as having zero effective weight by Append.
func NewCommittee(weights map[AuthorityName]uint64, keys map[AuthorityName][32]byte) *Committee {
	var total uint64
	for _, w := range weights {
		total += w
	}
	return &Committee{Weights: weights, Keys: keys, total: total}
}

// QuorumThreshold returns the minimum weight a certificate must carry:
// strictly more than two-thirds of total voting power (2f+1 of 3f+1).
func (c *Committee) QuorumThreshold() uint64 {
	// floor(2*total/3) + 1 is the smallest integer weight strictly greater
	// than two-thirds of total.
	return c.total*2/3 + 1
}

func (c *Committee) weightOf(a AuthorityName) (uint64, bool) {
	w, ok := c.Weights[a]
	if !ok || w == 0 {
		return 0, false
	}
	if _, hasKey := c.Keys[a]; !hasKey {
		return 0, false
	}
	return w, true
}

// CertificateAggregator incrementally collects authority signatures over one
// Transaction until quorum weight is reached (spec.md §4.3).
type CertificateAggregator struct {
	mu        sync.Mutex
	tx        Transaction
	committee *Committee
	seen      map[AuthorityName]struct{}
	partial   []AuthoritySignature
	weight    uint64
}

// TryNewCertificateAggregator validates the client signature before
// accepting any authority signatures.
func TryNewCertificateAggregator(tx Transaction, committee *Committee) (*CertificateAggregator, error) {
	if _, err := tx.CheckSignature(); err != nil {
		return nil, err
	}
	return newCertificateAggregatorUnsafe(tx, committee), nil
}

// NewCertificateAggregatorUnsafe skips client-signature validation for call
// sites that have already verified it (e.g. the authority aggregators in
// core/authority, right after Transaction.CheckSignature succeeded).
func NewCertificateAggregatorUnsafe(verified VerifiedTransaction, committee *Committee) *CertificateAggregator {
	return newCertificateAggregatorUnsafe(*verified.Unwrap(), committee)
}

func newCertificateAggregatorUnsafe(tx Transaction, committee *Committee) *CertificateAggregator {
	return &CertificateAggregator{tx: tx, committee: committee, seen: make(map[AuthorityName]struct{})}
}

// Append records one authority's signature over the transaction and returns
// the built certificate once quorum weight is reached (spec.md §4.3 steps
// 1-6). Returns (nil, nil) if quorum has not yet been reached. Repeated
// calls after quorum are permitted and idempotent under the
// already-contributed check.
func (ca *CertificateAggregator) Append(authority AuthorityName, sig Signature) (*CertifiedTransaction, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	encoded, err := EncodeTransactionData(ca.tx.Data)
	if err != nil {
		return nil, newErr(KindInvalidSignature, err, "certificate: encode transaction data: %v", err)
	}
	pub, hasKey := ca.committee.Keys[authority]
	if !hasKey {
		return nil, ErrUnknownSigner
	}
	if err := VerifyWithKey(encoded, sig, pub[:]); err != nil {
		return nil, err
	}

	if _, dup := ca.seen[authority]; dup {
		return nil, ErrCertificateAuthorityReuse
	}

	weight, ok := ca.committee.weightOf(authority)
	if !ok {
		return nil, ErrUnknownSigner
	}

	ca.seen[authority] = struct{}{}
	ca.partial = append(ca.partial, AuthoritySignature{Authority: authority, Sig: sig})
	ca.weight += weight

	if ca.weight < ca.committee.QuorumThreshold() {
		return nil, nil
	}
	return &CertifiedTransaction{Tx: ca.tx, Signatures: append([]AuthoritySignature(nil), ca.partial...)}, nil
}

// VerifyCertificate enforces invariant I3 (unique signers, summed weight
// at or above quorum threshold) and then schedules one verification
// obligation entry per signature against the shared, deduplicated
// TransactionData message buffer (spec.md §4.3 "Verification of a built
// certificate").
func VerifyCertificate(cert *CertifiedTransaction, committee *Committee) error {
	if len(cert.Signatures) == 0 {
		return ErrCertificateRequiresQuorum
	}
	seen := make(map[AuthorityName]struct{}, len(cert.Signatures))
	var weight uint64
	for _, s := range cert.Signatures {
		if _, dup := seen[s.Authority]; dup {
			return ErrCertificateAuthorityReuse
		}
		seen[s.Authority] = struct{}{}
		w, ok := committee.weightOf(s.Authority)
		if !ok {
			return ErrUnknownSigner
		}
		weight += w
	}
	if weight < committee.QuorumThreshold() {
		return ErrCertificateRequiresQuorum
	}

	obligation := NewVerificationObligation()
	encoded, err := EncodeTransactionData(cert.Tx.Data)
	if err != nil {
		return newErr(KindInvalidSignature, err, "certificate: encode transaction data: %v", err)
	}
	msgIdx := obligation.AddMessage(encoded)
	obligation.Push(msgIdx, cert.Tx.Sig)
	for _, s := range cert.Signatures {
		pub := committee.Keys[s.Authority]
		obligation.PushWithKey(msgIdx, pub[:], s.Sig)
	}
	return obligation.Verify()
}

// Digest returns the certificate's transaction digest. CertifiedTransaction
// deliberately has no Equal/Hash method (invariant I7, design note §9):
// two certificates with identical content but different signer sets are
// semantically equal and must be compared only through this digest.
func (c *CertifiedTransaction) Digest() (Digest, error) {
	if c.cachedDigest != nil {
		return *c.cachedDigest, nil
	}
	d, err := c.Tx.Digest()
	if err != nil {
		return Digest{}, err
	}
	c.cachedDigest = &d
	return d, nil
}
