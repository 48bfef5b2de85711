package server

// Grounded on cmd/xchainserver/server/routes.go: a gorilla/mux.Router with
// two global middlewares and one route per operation, retargeted from
// bridge management to the gateway's client-facing operations (spec.md §6).

import (
	"net/http"

	"github.com/gorilla/mux"

	"synnergy-gateway/core"
)

// NewRouter configures the HTTP routes for the gateway daemon.
func NewRouter(gw *core.GatewayState) *mux.Router {
	h := &Handlers{Gateway: gw}
	r := mux.NewRouter()

	r.Use(RequestLogger)
	r.Use(JSONHeaders)

	r.HandleFunc("/api/transactions", h.ExecuteTransaction).Methods(http.MethodPost)
	r.HandleFunc("/api/objects/{id}", h.GetObjectInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{addr}/objects", h.GetOwnedObjects).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{addr}/sync", h.SyncAccountState).Methods(http.MethodPost)

	return r
}
