package main

// gatewayd wires the client gateway's collaborators (local object store,
// committee, HTTP authority aggregator) into a GatewayState and exposes it
// over a gorilla/mux HTTP surface. Grounded on cmd/xchainserver/main.go's
// shape: load config, build collaborators, construct a router, log.Fatal
// http.ListenAndServe.

import (
	"encoding/hex"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"synnergy-gateway/cmd/gatewayd/server"
	"synnergy-gateway/core"
	"synnergy-gateway/core/authority"
	"synnergy-gateway/pkg/config"
)

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func buildCommittee(cfg *config.Config) *core.Committee {
	weights := make(map[core.AuthorityName]uint64, len(cfg.Gateway.Committee))
	keys := make(map[core.AuthorityName][32]byte, len(cfg.Gateway.Committee))
	for _, a := range cfg.Gateway.Committee {
		raw, err := hex.DecodeString(trimHexPrefix(a.Name))
		if err != nil || len(raw) != len(core.AuthorityName{}) {
			log.Fatalf("gatewayd: bad authority name %q: %v", a.Name, err)
		}
		var name core.AuthorityName
		copy(name[:], raw)
		weights[name] = a.Weight

		keyRaw, err := hex.DecodeString(trimHexPrefix(a.PublicKey))
		if err != nil || len(keyRaw) != 32 {
			log.Fatalf("gatewayd: bad authority public key for %q: %v", a.Name, err)
		}
		var key [32]byte
		copy(key[:], keyRaw)
		keys[name] = key
	}
	return core.NewCommittee(weights, keys)
}

func buildEndpoints(cfg *config.Config) []authority.Endpoint {
	out := make([]authority.Endpoint, 0, len(cfg.Gateway.Committee))
	for _, a := range cfg.Gateway.Committee {
		raw, err := hex.DecodeString(trimHexPrefix(a.Name))
		if err != nil {
			continue
		}
		var name core.AuthorityName
		copy(name[:], raw)
		out = append(out, authority.Endpoint{Name: name, URL: a.URL})
	}
	return out
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("gatewayd: config: %v", err)
	}

	logger := log.New()
	if cfg.Logging.Level != "" {
		if lvl, err := log.ParseLevel(cfg.Logging.Level); err == nil {
			logger.SetLevel(lvl)
		}
	}

	storePath := cfg.Gateway.StorePath
	if storePath == "" {
		storePath = "gateway.wal"
	}
	store, err := core.NewObjectStore(core.ObjectStoreConfig{WALPath: storePath, SnapshotPath: cfg.Gateway.SnapshotPath})
	if err != nil {
		log.Fatalf("gatewayd: object store: %v", err)
	}
	defer store.Close()

	committee := buildCommittee(cfg)
	dialTimeout := time.Duration(cfg.Gateway.DialTimeoutMS) * time.Millisecond
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	idleTTL := time.Duration(cfg.Gateway.IdleConnTTLMS) * time.Millisecond
	if idleTTL <= 0 {
		idleTTL = 30 * time.Second
	}
	agg := authority.NewHTTPAggregator(committee, buildEndpoints(cfg), dialTimeout, idleTTL)
	defer agg.Close()

	gateway := core.NewGatewayState(core.GatewayConfig{
		Store:      store,
		Aggregator: agg,
		Executor:   core.NewFrameworkExecutor(),
		Committee:  committee,
	})

	addr := os.Getenv("GATEWAY_API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8090"
	}
	logger.Printf("gatewayd listening on %s", addr)
	logger.Fatal(http.ListenAndServe(addr, server.NewRouter(gateway)))
}
