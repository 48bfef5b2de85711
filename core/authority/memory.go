package authority

// memory.go – InMemoryAuthoritySet, a deterministic-executor-backed test
// double for Aggregator. Grounded on the teacher's quorum_tracker.go
// in-memory vote bookkeeping (core.CertificateAggregator is the generalized,
// weighted descendant of that file — see core/certificate.go), wired here to
// actually execute each simulated authority's copy of a transaction rather
// than just counting votes, so tests exercise the real reconciliation path
// (spec.md §4.4.1 step 7) end to end.

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"synnergy-gateway/core"
)

// InMemoryAuthoritySet runs a whole committee's worth of deterministic
// executors in-process. It never touches the network and is meant for tests
// and local development (spec.md §6 "external contract" — this is one
// concrete, swappable fulfillment of it).
type InMemoryAuthoritySet struct {
	committee *core.Committee
	executor  core.Executor
	stores    map[core.AuthorityName]*core.ObjectStore
	signFunc  func(core.AuthorityName, []byte) (core.Signature, error)
}

// NewInMemoryAuthoritySet builds a test aggregator over committee, sharing
// stores pre-seeded with the same objects so each authority's local
// execution is deterministic and identical (a faithful BFT committee would
// reach the same state via consensus; this test double assumes that
// consensus already happened and starts every authority from the same
// snapshot).
func NewInMemoryAuthoritySet(committee *core.Committee, executor core.Executor, stores map[core.AuthorityName]*core.ObjectStore, signFunc func(core.AuthorityName, []byte) (core.Signature, error)) *InMemoryAuthoritySet {
	return &InMemoryAuthoritySet{committee: committee, executor: executor, stores: stores, signFunc: signFunc}
}

func (a *InMemoryAuthoritySet) ExecuteTransaction(ctx context.Context, tx core.Transaction) (core.CertifiedTransaction, core.TransactionEffects, error) {
	verified, err := tx.CheckSignature()
	if err != nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, err
	}
	agg := core.NewCertificateAggregatorUnsafe(verified, a.committee)

	inputs, err := tx.InputObjects()
	if err != nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, err
	}

	var consensusEffects core.TransactionEffects
	var cert *core.CertifiedTransaction

	for name := range a.committee.Weights {
		store, ok := a.stores[name]
		if !ok {
			continue
		}
		ts, err := core.NewTemporaryStore(store, inputs)
		if err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		eff, err := a.executor.Execute(ctx, ts, tx.Data)
		if err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		digest, err := tx.Digest()
		if err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		eff.TransactionDigest = digest
		if consensusEffects.TransactionDigest.IsZero() {
			consensusEffects = eff
		} else if !reflect.DeepEqual(eff, consensusEffects) {
			continue
		}

		sig, err := a.signFunc(name, mustEncode(tx.Data))
		if err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		built, err := agg.Append(name, sig)
		if err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		if err := store.ApplyEffects(ts.Writes(), eff); err != nil {
			return core.CertifiedTransaction{}, core.TransactionEffects{}, err
		}
		if built != nil {
			cert = built
			break
		}
	}
	if cert == nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, fmt.Errorf("authority: quorum not reached")
	}
	return *cert, consensusEffects, nil
}

func (a *InMemoryAuthoritySet) FetchObjectsFromAuthorities(ctx context.Context, refs []core.ObjectRef) ([]core.Object, error) {
	var out []core.Object
	for _, ref := range refs {
		found := false
		for _, store := range a.stores {
			objs := store.GetObjects([]core.ObjectID{ref.ID})
			if objs[0] != nil {
				out = append(out, *objs[0])
				found = true
				break
			}
		}
		if !found {
			return nil, core.NewInconsistentGatewayResult("authority: object %s not found by any authority", ref.ID.Hex())
		}
	}
	return out, nil
}

func (a *InMemoryAuthoritySet) GetObjectInfoExecute(ctx context.Context, id core.ObjectID) (core.ObjectRead, error) {
	for _, store := range a.stores {
		objs := store.GetObjects([]core.ObjectID{id})
		if objs[0] != nil {
			o := *objs[0]
			return core.ObjectRead{Tag: core.ObjectExists, Object: &o, ID: id}, nil
		}
		if ref, ok := store.GetLatestParentEntry(id); ok {
			return core.ObjectRead{Tag: core.ObjectDeleted, Ref: &ref, ID: id}, nil
		}
	}
	return core.ObjectRead{Tag: core.ObjectNotExists, ID: id}, nil
}

func (a *InMemoryAuthoritySet) SyncAllOwnedObjects(ctx context.Context, addr core.Address, timeout time.Duration) ([]core.Object, []core.ObjectRef, error) {
	_ = timeout
	seen := make(map[core.ObjectID]struct{})
	var active []core.Object
	for _, store := range a.stores {
		for _, ref := range store.GetAccountObjects(addr) {
			if _, dup := seen[ref.ID]; dup {
				continue
			}
			seen[ref.ID] = struct{}{}
			objs := store.GetObjects([]core.ObjectID{ref.ID})
			if objs[0] != nil {
				active = append(active, *objs[0])
			}
		}
	}
	return active, nil, nil
}

func mustEncode(data core.TransactionData) []byte {
	b, err := core.EncodeTransactionData(data)
	if err != nil {
		panic(err)
	}
	return b
}
