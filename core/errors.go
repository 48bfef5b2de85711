package core

// errors.go – the gateway's single error taxonomy (spec.md §7). Grounded on
// the teacher's fmt.Errorf("...: %w", err) wrapping idiom (core/ledger.go,
// core/access_control.go) plus logrus.WithFields structured logging
// (core/ledger.go) used at the point each error is minted.

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorKind enumerates the gateway's error taxonomy (spec.md §7 table).
type ErrorKind string

const (
	KindInvalidSignature          ErrorKind = "invalid_signature"
	KindDuplicateObjectRefInput    ErrorKind = "duplicate_object_ref_input"
	KindInvalidBatchTransaction    ErrorKind = "invalid_batch_transaction"
	KindObjectLockConflict         ErrorKind = "object_lock_conflict"
	KindObjectNotFound             ErrorKind = "object_not_found"
	KindDependentPackageNotFound   ErrorKind = "dependent_package_not_found"
	KindCertificateAuthorityReuse  ErrorKind = "certificate_authority_reuse"
	KindUnknownSigner              ErrorKind = "unknown_signer"
	KindCertificateRequiresQuorum  ErrorKind = "certificate_requires_quorum"
	KindInconsistentGatewayResult  ErrorKind = "inconsistent_gateway_result"
	KindGasBudgetBelowMinimum      ErrorKind = "gas_budget_below_minimum"
)

// GatewayError is the single error type surfaced by the gateway. Kind lets
// callers branch on the taxonomy from spec.md §7 without string matching;
// Unwrap preserves the underlying cause for errors.Is/errors.As.
type GatewayError struct {
	Kind ErrorKind
	Msg  string
	Tx   *Digest // set when the error concerns a specific transaction (e.g. ObjectLockConflict)
	err  error
}

func (e *GatewayError) Error() string {
	if e.Tx != nil {
		return fmt.Sprintf("%s: %s (tx %s)", e.Kind, e.Msg, e.Tx.Hex())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *GatewayError) Unwrap() error { return e.err }

// Is allows errors.Is(err, ErrInvalidSignature) style sentinel comparisons
// by kind rather than by wrapped-error identity.
func (e *GatewayError) Is(target error) bool {
	var ge *GatewayError
	if errors.As(target, &ge) {
		return ge.Kind == e.Kind && ge.Tx == nil
	}
	return false
}

func newErr(kind ErrorKind, cause error, format string, args ...interface{}) *GatewayError {
	msg := fmt.Sprintf(format, args...)
	logrus.WithFields(logrus.Fields{"kind": kind}).Warn(msg)
	return &GatewayError{Kind: kind, Msg: msg, err: cause}
}

func newErrWithTx(kind ErrorKind, tx Digest, cause error, format string, args ...interface{}) *GatewayError {
	msg := fmt.Sprintf(format, args...)
	logrus.WithFields(logrus.Fields{"kind": kind, "digest": tx.Hex()}).Warn(msg)
	return &GatewayError{Kind: kind, Msg: msg, Tx: &tx, err: cause}
}

// Sentinel values for errors.Is comparisons against a particular kind,
// irrespective of message text.
var (
	ErrInvalidSignature         = &GatewayError{Kind: KindInvalidSignature}
	ErrDuplicateObjectRefInput  = &GatewayError{Kind: KindDuplicateObjectRefInput}
	ErrInvalidBatchTransaction  = &GatewayError{Kind: KindInvalidBatchTransaction}
	ErrObjectNotFound           = &GatewayError{Kind: KindObjectNotFound}
	ErrDependentPackageNotFound = &GatewayError{Kind: KindDependentPackageNotFound}
	ErrCertificateAuthorityReuse = &GatewayError{Kind: KindCertificateAuthorityReuse}
	ErrUnknownSigner            = &GatewayError{Kind: KindUnknownSigner}
	ErrCertificateRequiresQuorum = &GatewayError{Kind: KindCertificateRequiresQuorum}
	ErrInconsistentGatewayResult = &GatewayError{Kind: KindInconsistentGatewayResult}
	ErrGasBudgetBelowMinimum     = &GatewayError{Kind: KindGasBudgetBelowMinimum}
)

// NewInconsistentGatewayResult wraps reason as an InconsistentGatewayResult
// error (spec.md §7), for callers outside this package — C6 reconciliation
// and the C8 transport both raise this kind when an assumption about
// framework or quorum shape is violated.
func NewInconsistentGatewayResult(format string, args ...interface{}) error {
	return newErr(KindInconsistentGatewayResult, nil, format, args...)
}
