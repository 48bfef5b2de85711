package core

// gateway_node.go – the gateway state machine (spec.md §4.4, component C6)
// and response shaping (§4.4.2, component C7). Grounded on the struct shape
// of the teacher's GatewayConfig/GatewayNode (a config struct bundling
// collaborators, a sync.RWMutex-guarded node type) generalized from
// cross-chain connection bookkeeping to the execute-transaction pipeline;
// logrus field logging follows core/ledger.go's style throughout.

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// MinGasBudget is the smallest gas budget the gateway accepts (spec.md
// §4.4.1 step 3 "verify gas budget >= minimum").
const MinGasBudget uint64 = 1

// Aggregator is the subset of the authority aggregator contract (spec.md §6)
// the gateway state machine drives. Declared here, implemented in
// core/authority, to avoid an import cycle between core and core/authority.
type Aggregator interface {
	ExecuteTransaction(ctx context.Context, tx Transaction) (CertifiedTransaction, TransactionEffects, error)
	FetchObjectsFromAuthorities(ctx context.Context, refs []ObjectRef) ([]Object, error)
	GetObjectInfoExecute(ctx context.Context, id ObjectID) (ObjectRead, error)
	SyncAllOwnedObjects(ctx context.Context, addr Address, timeout time.Duration) (active []Object, deleted []ObjectRef, err error)
}

// GatewayConfig bundles a GatewayState's collaborators (spec.md §2 data
// flow): the local object store (C4), the quorum-driving authority
// aggregator (C5/C8), the deterministic executor, and the committee used to
// build/verify certificates (C3).
type GatewayConfig struct {
	Store      *ObjectStore
	Aggregator Aggregator
	Executor   Executor
	Committee  *Committee
}

// GatewayState is the orchestrator described in spec.md §4.4: it owns no
// state of its own beyond its collaborators — every durable fact lives in
// Store, every authoritative fact comes from Aggregator.
type GatewayState struct {
	store      *ObjectStore
	aggregator Aggregator
	executor   Executor
	committee  *Committee
}

func NewGatewayState(cfg GatewayConfig) *GatewayState {
	return &GatewayState{store: cfg.Store, aggregator: cfg.Aggregator, executor: cfg.Executor, committee: cfg.Committee}
}

//---------------------------------------------------------------------
// Response shaping types (C7)
//---------------------------------------------------------------------

// TransactionResponseTag discriminates TransactionResponse (spec.md §6
// "execute_transaction(signed_tx) -> TransactionResponse").
type TransactionResponseTag uint8

const (
	ResponseEffect TransactionResponseTag = iota
	ResponsePublish
	ResponseSplitCoin
	ResponseMergeCoin
)

// EffectResponse is the generic shape for anything that isn't a recognized
// framework coin/publish call (spec.md §4.4.2 "for anything else").
type EffectResponse struct {
	Certificate CertifiedTransaction
	Effects     TransactionEffects
}

// PublishResponse shapes a successful Single(Publish) (spec.md §4.4.2).
type PublishResponse struct {
	Package       ObjectRef
	CreatedValues []RefAndOwner
	UpdatedGas    RefAndOwner
}

// SplitCoinResponse shapes a successful coin::split_vec call (spec.md
// §4.4.2). NewCoins preserves effects.created order, which is documented as
// not necessarily matching the client's requested split order.
type SplitCoinResponse struct {
	UpdatedCoin ObjectRef
	NewCoins    []ObjectRef
	UpdatedGas  ObjectRef
}

// MergeCoinResponse shapes a successful coin::join call (spec.md §4.4.2).
type MergeCoinResponse struct {
	UpdatedPrimaryCoin ObjectRef
	UpdatedGas         ObjectRef
}

// TransactionResponse is the tagged union execute_transaction returns.
type TransactionResponse struct {
	Tag        TransactionResponseTag
	Effect     *EffectResponse
	Publish    *PublishResponse
	SplitCoin  *SplitCoinResponse
	MergeCoin  *MergeCoinResponse
}

//---------------------------------------------------------------------
// 4.4.1 Execute-transaction pipeline
//---------------------------------------------------------------------

// ExecuteTransaction runs the full pipeline of spec.md §4.4.1 over a signed
// Transaction and shapes the response per §4.4.2.
func (g *GatewayState) ExecuteTransaction(ctx context.Context, tx Transaction) (TransactionResponse, error) {
	// 1. Verify.
	verified, err := tx.CheckSignature()
	if err != nil {
		return TransactionResponse{}, err
	}

	// 2. Resolve inputs.
	digest, err := tx.Digest()
	if err != nil {
		return TransactionResponse{}, err
	}
	inputKinds, err := tx.InputObjects()
	if err != nil {
		return TransactionResponse{}, err
	}

	// 3. Check locks / ownership / gas budget.
	if err := g.checkInputsAndBudget(verified, inputKinds); err != nil {
		return TransactionResponse{}, err
	}

	// 4. Local execution against a temporary store.
	localStore, err := NewTemporaryStore(g.store, inputKinds)
	if err != nil {
		return TransactionResponse{}, err
	}
	localEffects, err := g.executor.Execute(ctx, localStore, tx.Data)
	if err != nil {
		return TransactionResponse{}, err
	}
	localEffects.TransactionDigest = digest

	// 5. Lock owned inputs (after local execution, before submission — a
	// crash here is safe to retry since the lock already matches T).
	ownedRefs := ownedRefsOf(inputKinds, localStore)
	signedForLock := SignedTransaction{Data: tx.Data}
	if err := g.store.SetTransactionLock(ownedRefs, digest, signedForLock); err != nil {
		return TransactionResponse{}, err
	}

	// 6. Quorum drive.
	cert, quorumEffects, err := g.aggregator.ExecuteTransaction(ctx, tx)
	if err != nil {
		return TransactionResponse{}, err
	}
	if err := VerifyCertificate(&cert, g.committee); err != nil {
		return TransactionResponse{}, err
	}

	// 7. Reconcile: local vs quorum effects. spec.md §9 open question decided
	// here as (a) hard-fail on mismatch — the gateway does not trust a
	// possibly-stale local snapshot enough to silently prefer the quorum's
	// word for it (see DESIGN.md for the full rationale).
	localEncoded, err := EncodeTransactionEffects(localEffects)
	if err != nil {
		return TransactionResponse{}, err
	}
	quorumEncoded, err := EncodeTransactionEffects(quorumEffects)
	if err != nil {
		return TransactionResponse{}, err
	}
	if string(localEncoded) != string(quorumEncoded) {
		logrus.WithFields(logrus.Fields{"digest": digest.Hex()}).Error("gateway: local/quorum effects mismatch")
		return TransactionResponse{}, NewInconsistentGatewayResult("local execution disagrees with quorum effects for tx %s", digest.Hex())
	}

	// Fetch any referenced input the gateway doesn't yet hold locally (e.g.
	// a dependent package this transaction names that this gateway has
	// never seen before). effects.Created holds the transaction's own
	// freshly minted outputs, already materialized by local execution
	// above, and is never an input to fetch.
	if missing := g.missingDependencies(inputKinds); len(missing) > 0 {
		fetched, err := g.aggregator.FetchObjectsFromAuthorities(ctx, missing)
		if err != nil {
			return TransactionResponse{}, err
		}
		for _, o := range fetched {
			localStore.WriteObject(o)
		}
	}

	// 8. Commit.
	if err := g.store.Commit(localStore.Writes(), cert, quorumEffects); err != nil {
		return TransactionResponse{}, err
	}
	logrus.WithFields(logrus.Fields{"digest": digest.Hex()}).Info("gateway: committed transaction")

	// 9. Shape response.
	return g.shapeResponse(tx.Data, cert, quorumEffects)
}

func ownedRefsOf(kinds []InputObjectKind, store *TemporaryStore) []ObjectRef {
	var out []ObjectRef
	for _, k := range kinds {
		if k.Tag != InputOwnedMoveObject {
			continue
		}
		if o, ok := store.ReadObject(k.ID); ok {
			out = append(out, o.Reference())
		}
	}
	return out
}

// missingDependencies reports which of the transaction's declared inputs
// (packages, shared objects, owned objects) this gateway's local store has
// never materialized — not the transaction's own created outputs, which
// local execution already wrote into localStore.
func (g *GatewayState) missingDependencies(kinds []InputObjectKind) []ObjectRef {
	var missing []ObjectRef
	for _, k := range kinds {
		if objs := g.store.GetObjects([]ObjectID{k.ID}); objs[0] == nil {
			missing = append(missing, ObjectRef{ID: k.ID, Version: k.Version, Digest: k.Digest})
		}
	}
	return missing
}

// checkInputsAndBudget implements spec.md §4.4.1 step 3: verifies every
// input kind resolves to an object at the claimed version/digest, that
// owned inputs are owned by the sender, that the gas object is owned by the
// sender, and that the declared gas budget meets the minimum.
func (g *GatewayState) checkInputsAndBudget(verified VerifiedTransaction, inputKinds []InputObjectKind) error {
	tx := verified.Unwrap()
	ids := make([]ObjectID, len(inputKinds))
	for i, k := range inputKinds {
		ids[i] = k.ID
	}
	objs := g.store.GetObjects(ids)

	var gasBudget uint64
	switch tx.Data.Kind.Tag {
	case TxKindSingle:
		gasBudget = gasBudgetOf(*tx.Data.Kind.Single)
	case TxKindBatch:
		for _, m := range tx.Data.Kind.Batch {
			if b := gasBudgetOf(m); b > gasBudget {
				gasBudget = b
			}
		}
	}
	if gasBudget < MinGasBudget {
		return fmt.Errorf("%w: gas budget %d below minimum %d", ErrGasBudgetBelowMinimum, gasBudget, MinGasBudget)
	}

	for i, k := range inputKinds {
		o := objs[i]
		switch k.Tag {
		case InputOwnedMoveObject:
			if o == nil {
				return fmt.Errorf("%w: %s", ErrObjectNotFound, k.ID.Hex())
			}
			if o.Version != k.Version || o.Digest != k.Digest {
				return fmt.Errorf("%w: object %s stale reference", ErrObjectNotFound, k.ID.Hex())
			}
			if o.Owner.IsAddressOwned() && o.Owner.Address != tx.Data.Sender {
				return fmt.Errorf("%w: sender does not own object %s", ErrObjectNotFound, k.ID.Hex())
			}
		case InputSharedMoveObject:
			if o == nil {
				return fmt.Errorf("%w: %s", ErrObjectNotFound, k.ID.Hex())
			}
		case InputMovePackage:
			if o == nil {
				return fmt.Errorf("%w: %s", ErrDependentPackageNotFound, k.ID.Hex())
			}
		}
	}

	gasObjs := g.store.GetObjects([]ObjectID{tx.Data.GasPayment.ID})
	if gasObjs[0] == nil {
		return fmt.Errorf("%w: gas object %s", ErrObjectNotFound, tx.Data.GasPayment.ID.Hex())
	}
	if gasObjs[0].Owner.IsAddressOwned() && gasObjs[0].Owner.Address != tx.Data.Sender {
		return fmt.Errorf("%w: sender does not own gas object", ErrObjectNotFound)
	}
	return nil
}

func gasBudgetOf(k SingleTransactionKind) uint64 {
	switch k.Tag {
	case KindCall:
		return k.Call.GasBudget
	case KindPublish:
		return k.Publish.GasBudget
	default:
		return MinGasBudget
	}
}

//---------------------------------------------------------------------
// 4.4.2 Response shaping by transaction kind (C7)
//---------------------------------------------------------------------

func (g *GatewayState) shapeResponse(data TransactionData, cert CertifiedTransaction, effects TransactionEffects) (TransactionResponse, error) {
	if data.Kind.Tag == TxKindSingle {
		single := *data.Kind.Single
		if single.Tag == KindCall && single.Call.Package.ID == FrameworkPackageID && single.Call.Module == CoinModuleName {
			switch single.Call.Function {
			case FuncSplitVec:
				return g.shapeSplitCoin(*single.Call, effects)
			case FuncJoin:
				return g.shapeMergeCoin(effects)
			}
		}
		if single.Tag == KindPublish {
			return g.shapePublish(effects)
		}
	}
	return TransactionResponse{Tag: ResponseEffect, Effect: &EffectResponse{Certificate: cert, Effects: effects}}, nil
}

func (g *GatewayState) shapeSplitCoin(call MoveCall, effects TransactionEffects) (TransactionResponse, error) {
	if effects.Status.Tag != ExecutionSuccess {
		return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: execution failed: %s", effects.Status.Error)
	}
	if len(call.PureArgs) == 0 {
		return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: missing amounts argument")
	}
	amounts, err := DecodeU64Vec(call.PureArgs[0])
	if err != nil {
		return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: %v", err)
	}
	if len(effects.Mutated) != 2 {
		return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: expected 2 mutated objects, got %d", len(effects.Mutated))
	}
	if len(effects.Created) != len(amounts) {
		return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: expected %d created coins, got %d", len(amounts), len(effects.Created))
	}
	signer := effects.GasObject.Owner
	newCoins := make([]ObjectRef, len(effects.Created))
	for i, ro := range effects.Created {
		if ro.Owner != signer {
			return TransactionResponse{}, NewInconsistentGatewayResult("split_vec: created coin %s not owned by signer", ro.Ref.ID.Hex())
		}
		newCoins[i] = ro.Ref
	}
	updatedCoin := effects.Mutated[0].Ref
	if effects.Mutated[0].Ref == effects.GasObject.Ref {
		updatedCoin = effects.Mutated[1].Ref
	}
	return TransactionResponse{Tag: ResponseSplitCoin, SplitCoin: &SplitCoinResponse{
		UpdatedCoin: updatedCoin,
		NewCoins:    newCoins,
		UpdatedGas:  effects.GasObject.Ref,
	}}, nil
}

func (g *GatewayState) shapeMergeCoin(effects TransactionEffects) (TransactionResponse, error) {
	if effects.Status.Tag != ExecutionSuccess {
		return TransactionResponse{}, NewInconsistentGatewayResult("join: execution failed: %s", effects.Status.Error)
	}
	if len(effects.Mutated) != 2 {
		return TransactionResponse{}, NewInconsistentGatewayResult("join: expected 2 mutated objects, got %d", len(effects.Mutated))
	}
	primary := effects.Mutated[0].Ref
	if primary == effects.GasObject.Ref {
		primary = effects.Mutated[1].Ref
	}
	return TransactionResponse{Tag: ResponseMergeCoin, MergeCoin: &MergeCoinResponse{
		UpdatedPrimaryCoin: primary,
		UpdatedGas:         effects.GasObject.Ref,
	}}, nil
}

func (g *GatewayState) shapePublish(effects TransactionEffects) (TransactionResponse, error) {
	if effects.Status.Tag != ExecutionSuccess {
		return TransactionResponse{}, NewInconsistentGatewayResult("publish: execution failed: %s", effects.Status.Error)
	}
	if len(effects.Mutated) != 1 {
		return TransactionResponse{}, NewInconsistentGatewayResult("publish: expected exactly 1 mutated object (gas), got %d", len(effects.Mutated))
	}
	if len(effects.Created) != 1 {
		return TransactionResponse{}, NewInconsistentGatewayResult("publish: expected exactly 1 created package, got %d", len(effects.Created))
	}
	return TransactionResponse{Tag: ResponsePublish, Publish: &PublishResponse{
		Package:       effects.Created[0].Ref,
		CreatedValues: nil,
		UpdatedGas:    effects.Mutated[0],
	}}, nil
}

//---------------------------------------------------------------------
// 4.4.3 Sync-account-state
//---------------------------------------------------------------------

// SyncAccountState refreshes the gateway's mirror of addr's owned objects
// from the authority aggregator (spec.md §4.4.3). Individual authority
// failures do not fail the call (spec.md §8 scenario S6) — that tolerance
// lives inside Aggregator.SyncAllOwnedObjects itself.
func (g *GatewayState) SyncAccountState(ctx context.Context, addr Address, timeout time.Duration) error {
	active, _, err := g.aggregator.SyncAllOwnedObjects(ctx, addr, timeout)
	if err != nil {
		return err
	}
	syncCap := NewSyncCapability()
	for _, o := range active {
		g.store.InsertObjectUnsafe(syncCap, o)
	}
	logrus.WithFields(logrus.Fields{"address": addr.Hex(), "objects": len(active)}).Info("gateway: synced account state")
	return nil
}

//---------------------------------------------------------------------
// Read-only client-facing queries (spec.md §6 "client-facing operations")
//---------------------------------------------------------------------

// GetObjectInfo performs a best-latest lookup, preferring the local mirror
// and falling back to the authority aggregator when the object is unknown
// locally.
func (g *GatewayState) GetObjectInfo(ctx context.Context, id ObjectID) (ObjectRead, error) {
	objs := g.store.GetObjects([]ObjectID{id})
	if objs[0] != nil {
		return ObjectRead{Tag: ObjectExists, Object: objs[0], ID: id}, nil
	}
	if ref, ok := g.store.GetLatestParentEntry(id); ok {
		return ObjectRead{Tag: ObjectDeleted, Ref: &ref, ID: id}, nil
	}
	return g.aggregator.GetObjectInfoExecute(ctx, id)
}

// GetOwnedObjects reads the local owned index for addr.
func (g *GatewayState) GetOwnedObjects(addr Address) []ObjectRef {
	return g.store.GetAccountObjects(addr)
}
