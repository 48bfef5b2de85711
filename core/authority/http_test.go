package authority

import (
	"context"
	"crypto/ed25519"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"synnergy-gateway/core"
)

// testAuthorityServer answers one authority's wire protocol deterministically
// using a FrameworkExecutor running against its own in-memory store, so an
// HTTPAggregator integration test can exercise the real RLP wire format
// without a live blockchain behind it.
func newTestAuthorityServer(t *testing.T, name core.AuthorityName, priv ed25519.PrivateKey, store *core.ObjectStore) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/execute_transaction", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Data struct{ Encoded []byte }
			Sig  core.Signature
		}
		if err := rlp.DecodeBytes(raw, &req); err != nil {
			writeRLP(t, w, map[string]string{"Err": "decode"})
			return
		}
		data, err := core.DecodeTransactionData(req.Data.Encoded)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		tx := core.Transaction{Data: data, Sig: req.Sig}
		inputs, err := tx.InputObjects()
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		ts, err := core.NewTemporaryStore(store, inputs)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		eff, err := core.NewFrameworkExecutor().Execute(r.Context(), ts, data)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		digest, _ := tx.Digest()
		eff.TransactionDigest = digest
		if err := store.ApplyEffects(ts.Writes(), eff); err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		effEncoded, err := core.EncodeTransactionEffects(eff)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		sig, err := core.Sign(req.Data.Encoded, priv)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		writeRLP(t, w, authorityResponseForTest{AuthoritySig: sig, EffectsEncoded: effEncoded})
	})
	mux.HandleFunc("/get_object", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var id core.ObjectID
		if err := rlp.DecodeBytes(raw, &id); err != nil {
			writeAuthorityError(t, w, "decode")
			return
		}
		objs := store.GetObjects([]core.ObjectID{id})
		if objs[0] == nil {
			writeAuthorityError(t, w, "not found")
			return
		}
		encoded, err := core.EncodeObject(*objs[0])
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		writeRLP(t, w, authorityResponseForTest{EffectsEncoded: encoded})
	})
	mux.HandleFunc("/get_object_info", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var id core.ObjectID
		if err := rlp.DecodeBytes(raw, &id); err != nil {
			writeAuthorityError(t, w, "decode")
			return
		}
		objs := store.GetObjects([]core.ObjectID{id})
		if objs[0] == nil {
			writeAuthorityError(t, w, "not found")
			return
		}
		encoded, err := core.EncodeObject(*objs[0])
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		writeRLP(t, w, authorityResponseForTest{EffectsEncoded: encoded})
	})
	mux.HandleFunc("/sync_owned_objects", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var addr core.Address
		if err := rlp.DecodeBytes(raw, &addr); err != nil {
			writeAuthorityError(t, w, "decode")
			return
		}
		refs := store.GetAccountObjects(addr)
		objs := make([]core.Object, 0, len(refs))
		for _, ref := range refs {
			got := store.GetObjects([]core.ObjectID{ref.ID})
			if got[0] != nil {
				objs = append(objs, *got[0])
			}
		}
		encoded, err := rlp.EncodeToBytes(objs)
		if err != nil {
			writeAuthorityError(t, w, err.Error())
			return
		}
		writeRLP(t, w, authorityResponseForTest{EffectsEncoded: encoded})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// authorityResponseForTest mirrors http.go's unexported txBroadcastResponse
// wire shape; kept separate since the field layout is private to the package
// under test's RLP encoding but this file lives in the same package.
type authorityResponseForTest = struct {
	AuthoritySig   core.Signature
	EffectsEncoded []byte
	Err            string
}

func writeRLP(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	w.Write(b)
}

func writeAuthorityError(t *testing.T, w http.ResponseWriter, msg string) {
	t.Helper()
	writeRLP(t, w, authorityResponseForTest{Err: msg})
}

func TestHTTPAggregatorExecuteTransactionReachesQuorum(t *testing.T) {
	authorities, committee := buildTestCommittee(t, 3)
	dir := t.TempDir()
	var endpoints []Endpoint
	for i, a := range authorities {
		store := newAuthorityStore(t, dir, i)
		sender := mustAddr(1)
		obj := core.Object{ID: mustObjID(10), Version: 1, Owner: core.NewAddressOwner(sender), Contents: make([]byte, 8)}
		gas := core.Object{ID: mustObjID(20), Version: 1, Owner: core.NewAddressOwner(sender), Contents: make([]byte, 8)}
		seedAllStores(t, map[core.AuthorityName]*core.ObjectStore{a.name: store}, obj, gas)
		srv := newTestAuthorityServer(t, a.name, a.priv, store)
		endpoints = append(endpoints, Endpoint{Name: a.name, URL: srv.URL})
	}

	agg := NewHTTPAggregator(committee, endpoints, 2*time.Second, time.Minute)
	t.Cleanup(agg.Close)

	sender := mustAddr(1)
	recipient := mustAddr(2)
	obj := core.Object{ID: mustObjID(10), Version: 1, Owner: core.NewAddressOwner(sender)}
	gas := core.Object{ID: mustObjID(20), Version: 1, Owner: core.NewAddressOwner(sender)}
	_, clientPriv, _ := ed25519.GenerateKey(nil)
	data := core.TransactionData{
		Kind:       core.NewSingleTransactionKind(core.NewTransferKind(core.Transfer{Recipient: recipient, ObjectRef: obj.Reference()})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	encoded, err := core.EncodeTransactionData(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sig, err := core.Sign(encoded, clientPriv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx := core.Transaction{Data: data, Sig: sig}

	cert, effects, err := agg.ExecuteTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("execute transaction: %v", err)
	}
	if len(cert.Signatures) < 3 {
		t.Fatalf("expected quorum of 3-of-3, got %d signatures", len(cert.Signatures))
	}
	if err := core.VerifyCertificate(&cert, committee); err != nil {
		t.Fatalf("verify certificate: %v", err)
	}
	if effects.Status.Tag != core.ExecutionSuccess {
		t.Fatalf("expected successful effects, got %+v", effects.Status)
	}
}

func TestHTTPAggregatorToleratesPartialAuthorityFailure(t *testing.T) {
	authorities, committee := buildTestCommittee(t, 4)
	dir := t.TempDir()
	var endpoints []Endpoint
	sender := mustAddr(1)
	obj := core.Object{ID: mustObjID(10), Version: 1, Owner: core.NewAddressOwner(sender)}
	gas := core.Object{ID: mustObjID(20), Version: 1, Owner: core.NewAddressOwner(sender)}

	for i, a := range authorities {
		if i == 3 {
			// Simulate a dead authority: nothing listens here.
			endpoints = append(endpoints, Endpoint{Name: a.name, URL: "http://127.0.0.1:1"})
			continue
		}
		store := newAuthorityStore(t, dir, i)
		seedAllStores(t, map[core.AuthorityName]*core.ObjectStore{a.name: store}, obj, gas)
		srv := newTestAuthorityServer(t, a.name, a.priv, store)
		endpoints = append(endpoints, Endpoint{Name: a.name, URL: srv.URL})
	}

	agg := NewHTTPAggregator(committee, endpoints, 500*time.Millisecond, time.Minute)
	t.Cleanup(agg.Close)

	recipient := mustAddr(2)
	_, clientPriv, _ := ed25519.GenerateKey(nil)
	data := core.TransactionData{
		Kind:       core.NewSingleTransactionKind(core.NewTransferKind(core.Transfer{Recipient: recipient, ObjectRef: obj.Reference()})),
		Sender:     sender,
		GasPayment: gas.Reference(),
	}
	encoded, _ := core.EncodeTransactionData(data)
	sig, _ := core.Sign(encoded, clientPriv)
	tx := core.Transaction{Data: data, Sig: sig}

	cert, _, err := agg.ExecuteTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("expected quorum from the 3 live authorities despite the 1 dead one: %v", err)
	}
	if len(cert.Signatures) != 3 {
		t.Fatalf("expected exactly the 3 live authorities' signatures, got %d", len(cert.Signatures))
	}
}

func TestHTTPAggregatorGetObjectInfoExecute(t *testing.T) {
	authorities, committee := buildTestCommittee(t, 1)
	dir := t.TempDir()
	store := newAuthorityStore(t, dir, 0)
	obj := core.Object{ID: mustObjID(5), Version: 1, Owner: core.NewAddressOwner(mustAddr(1))}
	seedAllStores(t, map[core.AuthorityName]*core.ObjectStore{authorities[0].name: store}, obj)
	srv := newTestAuthorityServer(t, authorities[0].name, authorities[0].priv, store)

	agg := NewHTTPAggregator(committee, []Endpoint{{Name: authorities[0].name, URL: srv.URL}}, time.Second, time.Minute)
	t.Cleanup(agg.Close)

	read, err := agg.GetObjectInfoExecute(context.Background(), obj.ID)
	if err != nil {
		t.Fatalf("get object info: %v", err)
	}
	if read.Tag != core.ObjectExists || read.Object == nil || read.Object.ID != obj.ID {
		t.Fatalf("expected to resolve the object over the wire, got %+v", read)
	}
}

func TestHTTPAggregatorSyncAllOwnedObjects(t *testing.T) {
	authorities, committee := buildTestCommittee(t, 2)
	dir := t.TempDir()
	owner := mustAddr(9)
	obj := core.Object{ID: mustObjID(1), Version: 1, Owner: core.NewAddressOwner(owner)}
	var endpoints []Endpoint
	for i, a := range authorities {
		store := newAuthorityStore(t, dir, i)
		seedAllStores(t, map[core.AuthorityName]*core.ObjectStore{a.name: store}, obj)
		srv := newTestAuthorityServer(t, a.name, a.priv, store)
		endpoints = append(endpoints, Endpoint{Name: a.name, URL: srv.URL})
	}

	agg := NewHTTPAggregator(committee, endpoints, time.Second, time.Minute)
	t.Cleanup(agg.Close)

	active, _, err := agg.SyncAllOwnedObjects(context.Background(), owner, 2*time.Second)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one deduplicated object across both authorities, got %d", len(active))
	}
}
