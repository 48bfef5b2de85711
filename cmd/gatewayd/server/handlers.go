package server

// Grounded on cmd/xchainserver/server/handlers.go: small http.HandlerFunc
// values reading/writing JSON directly against core types, with mux.Vars
// extracting path parameters. Retargeted from bridge management to the
// gateway's execute_transaction / object query surface.

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"synnergy-gateway/core"
)

var errBadID = errors.New("malformed hex identifier")

// syncTimeout bounds how long SyncAccountState waits on the authority
// aggregator before giving up (spec.md §4.4.3).
const syncTimeout = 60 * time.Second

// Handlers bundles the gateway state every HTTP handler reads and writes
// against.
type Handlers struct {
	Gateway *core.GatewayState
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("gatewayd: failed to encode response")
	}
}

// ExecuteTransaction handles POST /api/transactions: decode a signed
// Transaction, run the pipeline, return its TransactionResponse.
func (h *Handlers) ExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := h.Gateway.ExecuteTransaction(r.Context(), tx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

// GetObjectInfo handles GET /api/objects/{id}.
func (h *Handlers) GetObjectInfo(w http.ResponseWriter, r *http.Request) {
	idHex := mux.Vars(r)["id"]
	id, err := parseObjectID(idHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	read, err := h.Gateway.GetObjectInfo(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, read)
}

// GetOwnedObjects handles GET /api/accounts/{addr}/objects.
func (h *Handlers) GetOwnedObjects(w http.ResponseWriter, r *http.Request) {
	addrHex := mux.Vars(r)["addr"]
	addr, err := parseAddress(addrHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.Gateway.GetOwnedObjects(addr))
}

// SyncAccountState handles POST /api/accounts/{addr}/sync.
func (h *Handlers) SyncAccountState(w http.ResponseWriter, r *http.Request) {
	addrHex := mux.Vars(r)["addr"]
	addr, err := parseAddress(addrHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Gateway.SyncAccountState(r.Context(), addr, syncTimeout); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"synced": true})
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func parseObjectID(s string) (core.ObjectID, error) {
	var id core.ObjectID
	raw, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil || len(raw) != len(id) {
		return core.ObjectID{}, errBadID
	}
	copy(id[:], raw)
	return id, nil
}

func parseAddress(s string) (core.Address, error) {
	var addr core.Address
	raw, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil || len(raw) != len(addr) {
		return core.Address{}, errBadID
	}
	copy(addr[:], raw)
	return addr, nil
}
