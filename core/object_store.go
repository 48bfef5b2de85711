package core

// object_store.go – the object store façade (spec.md §4.5, component C4).
// Grounded on core/ledger.go's NewLedger/OpenLedger WAL-replay-then-snapshot
// lifecycle (sync.RWMutex-guarded in-memory tables, an append-only WAL file
// for durability, a JSON snapshot loaded on open when present (this store
// never writes one), logrus progress logging),
// generalized from the teacher's blocks/UTXO/TokenBalances tables to the
// five logical tables of spec.md §4.5: objects, parent_sync,
// transaction_lock, certificates and owned_index.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// parentSyncEntry is one row of the parent_sync table: every version of an
// object ever observed, including tombstones (invariant I6).
type parentSyncEntry struct {
	Ref    ObjectRef
	TxDig  Digest
}

// ObjectStoreConfig configures an on-disk ObjectStore.
type ObjectStoreConfig struct {
	WALPath      string
	SnapshotPath string
}

// ObjectStore is the gateway's local mirror of on-chain state (spec.md
// §4.5). It is safe for concurrent use: readers may freely run alongside
// writers, but update_state (Commit) holds the write lock for its whole
// duration so readers never observe a partially-applied mutation (spec.md
// §5).
type ObjectStore struct {
	mu sync.RWMutex

	objects     map[ObjectID]Object
	parentSync  map[ObjectID][]parentSyncEntry
	locks       map[ObjectID]*SignedTransaction
	certificates map[Digest]CertifiedTransaction
	effects     map[Digest]TransactionEffects
	ownedIndex  map[Address]map[ObjectID]struct{}

	walFile *os.File
	snapshotPath string
}

type storeSnapshot struct {
	Objects      []Object
	ParentSync   map[ObjectID][]parentSyncEntry
	Locks        map[ObjectID]SignedTransaction
	Certificates map[Digest]CertifiedTransaction
	Effects      map[Digest]TransactionEffects
}

// storeMutation is the unit of WAL persistence: exactly the inputs of one
// Commit call (spec.md §4.5 "update_state ... must be crash-atomic").
type storeMutation struct {
	Writes  []Object
	HasCert bool
	Cert    CertifiedTransaction
	Effects TransactionEffects
}

// NewObjectStore opens (creating if necessary) the WAL at cfg.WALPath,
// replays it, and returns a ready store — mirroring
// core/ledger.go's NewLedger replay-on-open behavior.
func NewObjectStore(cfg ObjectStoreConfig) (s *ObjectStore, err error) {
	wal, err := os.OpenFile(cfg.WALPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("object_store: open WAL: %w", err)
	}
	defer func() {
		if err != nil {
			_ = wal.Close()
		}
	}()

	s = &ObjectStore{
		objects:      make(map[ObjectID]Object),
		parentSync:   make(map[ObjectID][]parentSyncEntry),
		locks:        make(map[ObjectID]*SignedTransaction),
		certificates: make(map[Digest]CertifiedTransaction),
		effects:      make(map[Digest]TransactionEffects),
		ownedIndex:   make(map[Address]map[ObjectID]struct{}),
		walFile:      wal,
		snapshotPath: cfg.SnapshotPath,
	}

	if cfg.SnapshotPath != "" {
		if f, errOpen := os.Open(cfg.SnapshotPath); errOpen == nil {
			var snap storeSnapshot
			decErr := json.NewDecoder(f).Decode(&snap)
			f.Close()
			if decErr != nil {
				return nil, fmt.Errorf("object_store: decode snapshot: %w", decErr)
			}
			s.restoreSnapshot(snap)
		} else if !os.IsNotExist(errOpen) {
			return nil, fmt.Errorf("object_store: open snapshot: %w", errOpen)
		}
	}

	scanner := bufio.NewScanner(wal)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<28)
	for scanner.Scan() {
		var mut storeMutation
		if err = json.Unmarshal(scanner.Bytes(), &mut); err != nil {
			return nil, fmt.Errorf("object_store: WAL unmarshal: %w", err)
		}
		s.applyMutation(mut)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("object_store: WAL scan: %w", err)
	}
	logrus.Infof("object_store: opened with %d objects, %d certificates", len(s.objects), len(s.certificates))
	return s, nil
}

func (s *ObjectStore) restoreSnapshot(snap storeSnapshot) {
	for _, o := range snap.Objects {
		s.indexObject(o)
	}
	for id, entries := range snap.ParentSync {
		s.parentSync[id] = entries
	}
	for id, lock := range snap.Locks {
		l := lock
		s.locks[id] = &l
	}
	for d, c := range snap.Certificates {
		s.certificates[d] = c
	}
	for d, e := range snap.Effects {
		s.effects[d] = e
	}
}

func (s *ObjectStore) indexObject(o Object) {
	s.objects[o.ID] = o
	if o.Owner.IsAddressOwned() {
		set, ok := s.ownedIndex[o.Owner.Address]
		if !ok {
			set = make(map[ObjectID]struct{})
			s.ownedIndex[o.Owner.Address] = set
		}
		set[o.ID] = struct{}{}
	}
}

func (s *ObjectStore) unindexOwned(addr Address, id ObjectID) {
	if set, ok := s.ownedIndex[addr]; ok {
		delete(set, id)
	}
}

//---------------------------------------------------------------------
// Reads
//---------------------------------------------------------------------

// GetObjects is a batched point read: returns one *Object (nil if absent)
// per requested id, preserving request order (spec.md §4.5).
func (s *ObjectStore) GetObjects(ids []ObjectID) []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Object, len(ids))
	for i, id := range ids {
		if o, ok := s.objects[id]; ok {
			cp := o
			out[i] = &cp
		}
	}
	return out
}

// GetLatestParentEntry returns the most recent ObjectRef recorded for id,
// including tombstones, regardless of whether the main objects table still
// carries a live entry (spec.md §4.5).
func (s *ObjectStore) GetLatestParentEntry(id ObjectID) (ObjectRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.parentSync[id]
	if len(entries) == 0 {
		return ObjectRef{}, false
	}
	return entries[len(entries)-1].Ref, true
}

// GetAccountObjects reads the owned index for addr.
func (s *ObjectStore) GetAccountObjects(addr Address) []ObjectRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.ownedIndex[addr]
	out := make([]ObjectRef, 0, len(set))
	for id := range set {
		out = append(out, s.objects[id].Reference())
	}
	return out
}

// GetCertificate returns the certificate stored for digest, if any.
func (s *ObjectStore) GetCertificate(digest Digest) (CertifiedTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certificates[digest]
	return c, ok
}

// GetEffects returns the effects stored for digest, if any.
func (s *ObjectStore) GetEffects(digest Digest) (TransactionEffects, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.effects[digest]
	return e, ok
}

//---------------------------------------------------------------------
// Locks
//---------------------------------------------------------------------

// SetTransactionLock installs a lock on every owned ref in ownedRefs against
// signed (spec.md §4.5). If a ref is already locked to a different
// transaction it fails with ObjectLockConflict carrying that transaction's
// digest; if the existing lock matches signed's transaction, the call
// succeeds idempotently so a retry after a crash between lock and commit is
// safe (spec.md §4.4.1 step 5).
func (s *ObjectStore) SetTransactionLock(ownedRefs []ObjectRef, digest Digest, signed SignedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range ownedRefs {
		if existing, ok := s.locks[ref.ID]; ok {
			existingDigest, err := existing.Data.digestUnsafe()
			if err != nil {
				return err
			}
			if existingDigest != digest {
				return newErrWithTx(KindObjectLockConflict, existingDigest, nil,
					"object %s already locked to a different transaction", ref.ID.Hex())
			}
			// idempotent: same transaction already holds this lock
			continue
		}
	}
	for _, ref := range ownedRefs {
		if _, ok := s.locks[ref.ID]; !ok {
			sc := signed
			s.locks[ref.ID] = &sc
		}
	}
	return nil
}

// digestUnsafe hashes TransactionData without going through Transaction's
// cache, for lock-conflict reporting where only the data is on hand.
func (d TransactionData) digestUnsafe() (Digest, error) {
	encoded, err := EncodeTransactionData(d)
	if err != nil {
		return Digest{}, err
	}
	return Sha3Digest(encoded), nil
}

// ReleaseLock clears any lock held on id, used after a commit consumes the
// object or by an explicit stale-lock admin path (spec.md §5 cancellation
// discussion).
func (s *ObjectStore) ReleaseLock(id ObjectID) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// LockedBy reports the transaction currently locking id, if any.
func (s *ObjectStore) LockedBy(id ObjectID) (*SignedTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locks[id]
	return l, ok
}

//---------------------------------------------------------------------
// Commit (update_state)
//---------------------------------------------------------------------

// Commit atomically applies a temporary store's writes, the certificate and
// effects that produced them (spec.md §4.5 update_state): object/owned_index
// updates, parent_sync append for every created/mutated/deleted/wrapped/
// unwrapped reference, lock release for consumed inputs, and certificate/
// effects storage keyed by digest. The WAL write + fsync happens before the
// in-memory tables are mutated under the same lock, so a crash either sees
// the mutation fully in the WAL (and replays it on restart) or not at all.
func (s *ObjectStore) Commit(writes []Object, cert CertifiedTransaction, effects TransactionEffects) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mut := storeMutation{Writes: writes, HasCert: true, Cert: cert, Effects: effects}
	data, err := json.Marshal(mut)
	if err != nil {
		return fmt.Errorf("object_store: marshal mutation: %w", err)
	}
	if _, err := s.walFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("object_store: write WAL: %w", err)
	}
	if err := s.walFile.Sync(); err != nil {
		return fmt.Errorf("object_store: sync WAL: %w", err)
	}

	s.applyMutation(mut)
	logrus.WithFields(logrus.Fields{"digest": effects.TransactionDigest.Hex(), "writes": len(writes)}).Info("object_store: committed")
	return nil
}

// ApplyEffects is Commit without a certificate, for callers that apply one
// authority's local execution result before a certificate exists yet (e.g.
// core/authority's InMemoryAuthoritySet, simulating each committee member's
// own state transition ahead of certificate assembly).
func (s *ObjectStore) ApplyEffects(writes []Object, effects TransactionEffects) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mut := storeMutation{Writes: writes, Effects: effects}
	data, err := json.Marshal(mut)
	if err != nil {
		return fmt.Errorf("object_store: marshal mutation: %w", err)
	}
	if _, err := s.walFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("object_store: write WAL: %w", err)
	}
	if err := s.walFile.Sync(); err != nil {
		return fmt.Errorf("object_store: sync WAL: %w", err)
	}
	s.applyMutation(mut)
	return nil
}

func (s *ObjectStore) applyMutation(mut storeMutation) {
	digest := mut.Effects.TransactionDigest

	for _, o := range mut.Writes {
		s.indexObject(o)
	}

	appendSync := func(ro RefAndOwner) {
		s.parentSync[ro.Ref.ID] = append(s.parentSync[ro.Ref.ID], parentSyncEntry{Ref: ro.Ref, TxDig: digest})
	}
	for _, ro := range mut.Effects.Created {
		appendSync(ro)
	}
	for _, ro := range mut.Effects.Mutated {
		appendSync(ro)
	}
	for _, ro := range mut.Effects.Unwrapped {
		appendSync(ro)
	}
	for _, ref := range mut.Effects.Deleted {
		tomb := ObjectRef{ID: ref.ID, Version: ref.Version + 1, Digest: ObjectDigestDeleted}
		s.parentSync[ref.ID] = append(s.parentSync[ref.ID], parentSyncEntry{Ref: tomb, TxDig: digest})
		if existing, ok := s.objects[ref.ID]; ok {
			if existing.Owner.IsAddressOwned() {
				s.unindexOwned(existing.Owner.Address, ref.ID)
			}
			delete(s.objects, ref.ID)
		}
	}
	for _, ref := range mut.Effects.Wrapped {
		tomb := ObjectRef{ID: ref.ID, Version: ref.Version + 1, Digest: ObjectDigestWrapped}
		s.parentSync[ref.ID] = append(s.parentSync[ref.ID], parentSyncEntry{Ref: tomb, TxDig: digest})
		if existing, ok := s.objects[ref.ID]; ok {
			if existing.Owner.IsAddressOwned() {
				s.unindexOwned(existing.Owner.Address, ref.ID)
			}
			delete(s.objects, ref.ID)
		}
	}

	// Release locks on every owned input the transaction consumed: every
	// object that was an input and is either mutated, deleted or wrapped (not
	// merely read, as shared objects never carry a lock in the first place).
	for _, ro := range mut.Effects.Mutated {
		delete(s.locks, ro.Ref.ID)
	}
	for _, ref := range mut.Effects.Deleted {
		delete(s.locks, ref.ID)
	}
	for _, ref := range mut.Effects.Wrapped {
		delete(s.locks, ref.ID)
	}
	delete(s.locks, mut.Effects.GasObject.Ref.ID)

	if mut.HasCert {
		if certDigest, err := mut.Cert.Digest(); err == nil {
			s.certificates[certDigest] = mut.Cert
		}
	}
	s.effects[digest] = mut.Effects
}

//---------------------------------------------------------------------
// Privileged sync paths (design note §9: gate on a capability)
//---------------------------------------------------------------------

// SyncCapability must be held to call InsertObjectUnsafe/InsertCertUnsafe.
// It exists purely so these privileged, lock-bypassing calls cannot be
// reached by accident from ordinary execute-transaction code paths (spec.md
// §9 "document this as a privileged path and gate it on a capability").
type SyncCapability struct{ issued bool }

// NewSyncCapability is the only constructor for SyncCapability; callers that
// hold one are asserting they are on the account-sync path (spec.md §4.4.3),
// not the transaction-execution path.
func NewSyncCapability() SyncCapability { return SyncCapability{issued: true} }

// InsertObjectUnsafe writes o into the store bypassing lock validation, for
// use by sync-account-state (spec.md §4.4.3, §9 "insert_object_unsafe").
func (s *ObjectStore) InsertObjectUnsafe(_ SyncCapability, o Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexObject(o)
	s.parentSync[o.ID] = append(s.parentSync[o.ID], parentSyncEntry{Ref: o.Reference()})
}

// InsertCertUnsafe records a certificate observed during sync without
// requiring a matching Commit.
func (s *ObjectStore) InsertCertUnsafe(_ SyncCapability, cert CertifiedTransaction) error {
	digest, err := cert.Digest()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.certificates[digest] = cert
	s.mu.Unlock()
	return nil
}

// Close flushes and closes the underlying WAL file.
func (s *ObjectStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walFile.Close()
}
