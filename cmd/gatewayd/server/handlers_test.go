package server

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"synnergy-gateway/core"
	"synnergy-gateway/core/authority"
)

// testGateway bundles a GatewayState with its own local store and, behind
// it, a single in-memory authority with an independent store. Seeding must
// go through seedOwnedObject so both stores start from identical state,
// mirroring gateway_node.go's assumption that local execution and the
// quorum's execution begin from the same object versions.
type testGateway struct {
	gw             *core.GatewayState
	localStore     *core.ObjectStore
	authorityStore *core.ObjectStore
}

func newTestGateway(t *testing.T) (*testGateway, ed25519.PrivateKey, core.Address) {
	t.Helper()
	dir := t.TempDir()
	localStore, err := core.NewObjectStore(core.ObjectStoreConfig{
		WALPath:      filepath.Join(dir, "local-wal.log"),
		SnapshotPath: filepath.Join(dir, "local-snapshot.json"),
	})
	if err != nil {
		t.Fatalf("new local object store: %v", err)
	}
	t.Cleanup(func() { localStore.Close() })

	authorityStore, err := core.NewObjectStore(core.ObjectStoreConfig{
		WALPath:      filepath.Join(dir, "authority-wal.log"),
		SnapshotPath: filepath.Join(dir, "authority-snapshot.json"),
	})
	if err != nil {
		t.Fatalf("new authority object store: %v", err)
	}
	t.Cleanup(func() { authorityStore.Close() })

	authName := core.AuthorityName{1}
	authPub, authPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}
	var key [32]byte
	copy(key[:], authPub)
	committee := core.NewCommittee(map[core.AuthorityName]uint64{authName: 1}, map[core.AuthorityName][32]byte{authName: key})

	stores := map[core.AuthorityName]*core.ObjectStore{authName: authorityStore}
	signFunc := func(name core.AuthorityName, msg []byte) (core.Signature, error) {
		return core.Sign(msg, authPriv)
	}
	agg := authority.NewInMemoryAuthoritySet(committee, core.NewFrameworkExecutor(), stores, signFunc)

	gw := core.NewGatewayState(core.GatewayConfig{
		Store:      localStore,
		Aggregator: agg,
		Executor:   core.NewFrameworkExecutor(),
		Committee:  committee,
	})

	_, clientPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	var sender core.Address
	pub := clientPriv.Public().(ed25519.PublicKey)
	digest := core.Sha3Digest(pub)
	copy(sender[:], digest[:20])

	return &testGateway{gw: gw, localStore: localStore, authorityStore: authorityStore}, clientPriv, sender
}

func seedOwnedObject(t *testing.T, tg *testGateway, owner core.Address, id core.ObjectID) core.Object {
	t.Helper()
	obj := core.Object{ID: id, Version: 1, Owner: core.NewAddressOwner(owner)}
	effects := core.TransactionEffects{
		TransactionDigest: core.Sha3Digest(append([]byte("seed-"), id[:]...)),
		Created:           []core.RefAndOwner{{Ref: obj.Reference(), Owner: obj.Owner}},
		GasObject:         core.RefAndOwner{Ref: core.ObjectRef{ID: id}, Owner: obj.Owner},
		Status:            core.ExecutionStatus{Tag: core.ExecutionSuccess},
	}
	for _, store := range []*core.ObjectStore{tg.localStore, tg.authorityStore} {
		if err := store.Commit([]core.Object{obj}, core.CertifiedTransaction{}, effects); err != nil {
			t.Fatalf("seed commit: %v", err)
		}
	}
	return obj
}

func TestHandlersGetObjectInfoRoundTrip(t *testing.T) {
	tg, _, sender := newTestGateway(t)
	id := core.ObjectID{9}
	obj := seedOwnedObject(t, tg, sender, id)

	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/objects/" + obj.ID.Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var read core.ObjectRead
	if err := json.NewDecoder(resp.Body).Decode(&read); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if read.Tag != core.ObjectExists || read.Object == nil || read.Object.ID != obj.ID {
		t.Fatalf("expected to resolve the seeded object, got %+v", read)
	}
}

func TestHandlersGetObjectInfoRejectsMalformedID(t *testing.T) {
	tg, _, _ := newTestGateway(t)
	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/objects/not-hex")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", resp.StatusCode)
	}
}

func TestHandlersGetOwnedObjects(t *testing.T) {
	tg, _, sender := newTestGateway(t)
	seedOwnedObject(t, tg, sender, core.ObjectID{1})
	seedOwnedObject(t, tg, sender, core.ObjectID{2})

	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/accounts/" + sender.Hex() + "/objects")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var refs []core.ObjectRef
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 owned objects, got %d", len(refs))
	}
}

func TestHandlersExecuteTransactionHappyPath(t *testing.T) {
	tg, clientPriv, sender := newTestGateway(t)
	recipient := core.Address{7}
	coin := seedOwnedObject(t, tg, sender, core.ObjectID{10})
	gas := seedOwnedObject(t, tg, sender, core.ObjectID{20})

	data := core.TransferCoin(sender, coin.Reference(), recipient, gas.Reference())
	encoded, err := core.EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sig, err := core.Sign(encoded, clientPriv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx := core.Transaction{Data: data, Sig: sig}
	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSONHeaders middleware to set application/json, got %q", ct)
	}
}

func TestHandlersExecuteTransactionRejectsMalformedBody(t *testing.T) {
	tg, _, _ := newTestGateway(t)
	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestHandlersSyncAccountState(t *testing.T) {
	tg, _, sender := newTestGateway(t)
	seedOwnedObject(t, tg, sender, core.ObjectID{3})

	srv := httptest.NewServer(NewRouter(tg.gw))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/accounts/"+sender.Hex()+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["synced"] {
		t.Fatalf("expected synced=true, got %+v", out)
	}
}
