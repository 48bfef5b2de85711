// Package authority implements the authority aggregator contract (spec.md
// §6, component C5) and its default transport (component C8, expansion).
// The gateway's core package depends only on the Aggregator interface;
// everything in this package is swappable.
package authority

import (
	"context"
	"time"

	"synnergy-gateway/core"
)

// Aggregator is the external contract core.GatewayState drives the quorum
// step through (spec.md §6 "Authority aggregator contract").
type Aggregator interface {
	// ExecuteTransaction broadcasts tx, collects authority signatures, and
	// returns once a quorum has signed identical effects.
	ExecuteTransaction(ctx context.Context, tx core.Transaction) (core.CertifiedTransaction, core.TransactionEffects, error)

	// FetchObjectsFromAuthorities downloads the given refs, failing with
	// InconsistentGatewayResult if fewer distinct objects than requested are
	// recovered.
	FetchObjectsFromAuthorities(ctx context.Context, refs []core.ObjectRef) ([]core.Object, error)

	// GetObjectInfoExecute performs a best-latest lookup for id.
	GetObjectInfoExecute(ctx context.Context, id core.ObjectID) (core.ObjectRead, error)

	// SyncAllOwnedObjects returns the reachable quorum's view of addr's
	// owned objects and any refs it reports deleted.
	SyncAllOwnedObjects(ctx context.Context, addr core.Address, timeout time.Duration) (active []core.Object, deleted []core.ObjectRef, err error)
}
