package main

// gateway-cli is an operator tool for the client gateway, structured the
// way cmd/cli/gateway_node.go structures its cobra commands: a lazily
// initialized shared state behind a PersistentPreRunE, one RunE per
// subcommand, settings read through viper. Retargeted from cross-chain
// connection management to object-store inspection and committee wiring.

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"synnergy-gateway/core"
	"synnergy-gateway/core/authority"
	"synnergy-gateway/pkg/config"
)

var (
	gw   *core.GatewayState
	gwMu sync.RWMutex
)

func cliInit(cmd *cobra.Command, _ []string) error {
	gwMu.RLock()
	ready := gw != nil
	gwMu.RUnlock()
	if ready {
		return nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if lv, err := logrus.ParseLevel(viper.GetString("logging.level")); err == nil {
		logrus.SetLevel(lv)
	}

	storePath := cfg.Gateway.StorePath
	if storePath == "" {
		storePath = "./gateway.wal"
	}
	store, err := core.NewObjectStore(core.ObjectStoreConfig{WALPath: storePath, SnapshotPath: cfg.Gateway.SnapshotPath})
	if err != nil {
		return err
	}

	weights := make(map[core.AuthorityName]uint64)
	keys := make(map[core.AuthorityName][32]byte)
	var endpoints []authority.Endpoint
	for _, a := range cfg.Gateway.Committee {
		raw, err := hex.DecodeString(a.Name)
		if err != nil || len(raw) != 20 {
			continue
		}
		keyRaw, err := hex.DecodeString(a.PublicKey)
		if err != nil || len(keyRaw) != 32 {
			continue
		}
		var name core.AuthorityName
		copy(name[:], raw)
		var key [32]byte
		copy(key[:], keyRaw)
		weights[name] = a.Weight
		keys[name] = key
		endpoints = append(endpoints, authority.Endpoint{Name: name, URL: a.URL})
	}
	committee := core.NewCommittee(weights, keys)
	a := authority.NewHTTPAggregator(committee, endpoints, 5*time.Second, 30*time.Second)

	gwMu.Lock()
	gw = core.NewGatewayState(core.GatewayConfig{
		Store:      store,
		Aggregator: a,
		Executor:   core.NewFrameworkExecutor(),
		Committee:  committee,
	})
	gwMu.Unlock()
	return nil
}

func cliOwnedObjects(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 20 {
		return fmt.Errorf("bad address %q", args[0])
	}
	var addr core.Address
	copy(addr[:], raw)

	gwMu.RLock()
	state := gw
	gwMu.RUnlock()
	for _, ref := range state.GetOwnedObjects(addr) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tv%d\t%s\n", ref.ID.Hex(), ref.Version, ref.Digest.Hex())
	}
	return nil
}

func cliObjectInfo(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 20 {
		return fmt.Errorf("bad object id %q", args[0])
	}
	var id core.ObjectID
	copy(id[:], raw)

	gwMu.RLock()
	state := gw
	gwMu.RUnlock()
	read, err := state.GetObjectInfo(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tag=%d\n", read.Tag)
	return nil
}

func cliSync(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 20 {
		return fmt.Errorf("bad address %q", args[0])
	}
	var addr core.Address
	copy(addr[:], raw)

	gwMu.RLock()
	state := gw
	gwMu.RUnlock()
	if err := state.SyncAccountState(cmd.Context(), addr, syncCLITimeout); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "synced")
	return nil
}

const syncCLITimeout = 60 * time.Second

var rootCmd = &cobra.Command{Use: "gateway-cli", Short: "Client gateway operator tool", PersistentPreRunE: cliInit}
var ownedCmd = &cobra.Command{Use: "owned <address-hex>", Short: "List an address's owned objects", Args: cobra.ExactArgs(1), RunE: cliOwnedObjects}
var infoCmd = &cobra.Command{Use: "info <object-id-hex>", Short: "Best-latest lookup of an object", Args: cobra.ExactArgs(1), RunE: cliObjectInfo}
var syncCmd = &cobra.Command{Use: "sync <address-hex>", Short: "Refresh an address's owned-object mirror", Args: cobra.ExactArgs(1), RunE: cliSync}

func main() {
	rootCmd.AddCommand(ownedCmd, infoCmd, syncCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}
