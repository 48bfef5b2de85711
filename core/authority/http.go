package authority

// http.go – the default Aggregator implementation (spec.md §6, expansion
// component C8): one net/http client shared by every authority endpoint, RLP-encoded
// bodies, a pooled TCP dialer for transport reuse. Grounded on
// core/connection_pool.go's ConnPool/Dialer (idle-TTL reaping via a
// background goroutine) for the transport layer, and on
// core/gateway_node.go's QueryExternalData (plain net/http GET/POST against
// peer-supplied URLs) for the RPC call shape — generalized from one
// best-effort external fetch to a broadcast-and-collect round trip against
// every committee member, gathered over plain goroutines and a channel in
// the same style as ConnPool's reaper, rather than an errgroup.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"synnergy-gateway/core"
)

// Endpoint is one committee member's network address.
type Endpoint struct {
	Name core.AuthorityName
	URL  string
}

// HTTPAggregator is the default, network-facing Aggregator. It owns a
// ConnPool per process (shared across endpoints, keyed by host:port) so
// repeated calls to the same authority reuse warm TCP connections instead of
// paying a fresh handshake every request.
type HTTPAggregator struct {
	committee *core.Committee
	endpoints []Endpoint
	client    *http.Client
	pool      *core.ConnPool
}

// NewHTTPAggregator builds a client for committee's endpoints. dialTimeout
// and idleTTL are forwarded to the underlying core.Dialer/core.ConnPool.
func NewHTTPAggregator(committee *core.Committee, endpoints []Endpoint, dialTimeout, idleTTL time.Duration) *HTTPAggregator {
	pool := core.NewConnPool(core.NewDialer(dialTimeout, 30*time.Second), 8, idleTTL)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := pool.Acquire(ctx, addr)
			if err != nil {
				return nil, err
			}
			return &releasingConn{Conn: conn, pool: pool}, nil
		},
	}
	return &HTTPAggregator{
		committee: committee,
		endpoints: endpoints,
		client:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		pool:      pool,
	}
}

// releasingConn returns the wrapped connection to the pool instead of
// closing it when net/http's transport is done with it, so ConnPool's
// reuse accounting stays meaningful under net/http's own connection
// lifecycle.
type releasingConn struct {
	net.Conn
	pool *core.ConnPool
}

func (c *releasingConn) Close() error {
	c.pool.Release(c.Conn)
	return nil
}

// Close shuts down the pool's background reaper and closes idle connections.
func (ag *HTTPAggregator) Close() { ag.pool.Close() }

type txBroadcastRequest struct {
	Data wireEnvelope
	Sig  core.Signature
}

type wireEnvelope struct {
	Encoded []byte
}

type txBroadcastResponse struct {
	AuthoritySig    core.Signature
	EffectsEncoded  []byte
	Err             string
}

func (ag *HTTPAggregator) ExecuteTransaction(ctx context.Context, tx core.Transaction) (core.CertifiedTransaction, core.TransactionEffects, error) {
	verified, err := tx.CheckSignature()
	if err != nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, err
	}
	agg := core.NewCertificateAggregatorUnsafe(verified, ag.committee)

	encoded, err := core.EncodeTransactionData(tx.Data)
	if err != nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, err
	}
	body, err := rlp.EncodeToBytes(txBroadcastRequest{Data: wireEnvelope{Encoded: encoded}, Sig: tx.Sig})
	if err != nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, err
	}

	type result struct {
		name core.AuthorityName
		resp txBroadcastResponse
		err  error
	}
	results := make(chan result, len(ag.endpoints))
	var wg sync.WaitGroup
	for _, ep := range ag.endpoints {
		wg.Add(1)
		go func(ep Endpoint) {
			defer wg.Done()
			resp, err := ag.post(ctx, ep.URL+"/execute_transaction", body)
			results <- result{name: ep.Name, resp: resp, err: err}
		}(ep)
	}
	go func() { wg.Wait(); close(results) }()

	var quorumEffects core.TransactionEffects
	var quorumEncoded []byte
	var cert *core.CertifiedTransaction
	var haveEffects bool
	for r := range results {
		if r.err != nil {
			logrus.WithFields(logrus.Fields{"authority": r.name.Hex(), "err": r.err}).Warn("authority: broadcast failed")
			continue
		}
		if r.resp.Err != "" {
			logrus.WithFields(logrus.Fields{"authority": r.name.Hex(), "err": r.resp.Err}).Warn("authority: rejected transaction")
			continue
		}
		eff, err := core.DecodeTransactionEffects(r.resp.EffectsEncoded)
		if err != nil {
			continue
		}
		if haveEffects && !bytes.Equal(r.resp.EffectsEncoded, quorumEncoded) {
			logrus.WithFields(logrus.Fields{"authority": r.name.Hex()}).Warn("authority: effects differ from the first accepted response")
			continue
		}
		built, err := agg.Append(r.name, r.resp.AuthoritySig)
		if err != nil {
			logrus.WithFields(logrus.Fields{"authority": r.name.Hex(), "err": err}).Warn("authority: signature rejected")
			continue
		}
		if !haveEffects {
			quorumEffects = eff
			quorumEncoded = r.resp.EffectsEncoded
			haveEffects = true
		}
		if built != nil {
			cert = built
		}
	}
	if cert == nil {
		return core.CertifiedTransaction{}, core.TransactionEffects{}, fmt.Errorf("authority: quorum not reached across %d endpoints", len(ag.endpoints))
	}
	return *cert, quorumEffects, nil
}

func (ag *HTTPAggregator) FetchObjectsFromAuthorities(ctx context.Context, refs []core.ObjectRef) ([]core.Object, error) {
	seen := make(map[core.ObjectID]core.Object)
	for _, ep := range ag.endpoints {
		for _, ref := range refs {
			if _, ok := seen[ref.ID]; ok {
				continue
			}
			body, _ := rlp.EncodeToBytes(ref.ID)
			resp, err := ag.post(ctx, ep.URL+"/get_object", body)
			if err != nil || resp.Err != "" {
				continue
			}
			obj, err := core.DecodeObject(resp.EffectsEncoded)
			if err != nil {
				continue
			}
			seen[ref.ID] = obj
		}
	}
	if len(seen) != len(refs) {
		return nil, core.NewInconsistentGatewayResult("requested %d objects, recovered %d", len(refs), len(seen))
	}
	out := make([]core.Object, 0, len(refs))
	for _, ref := range refs {
		out = append(out, seen[ref.ID])
	}
	return out, nil
}

func (ag *HTTPAggregator) GetObjectInfoExecute(ctx context.Context, id core.ObjectID) (core.ObjectRead, error) {
	for _, ep := range ag.endpoints {
		body, _ := rlp.EncodeToBytes(id)
		resp, err := ag.post(ctx, ep.URL+"/get_object_info", body)
		if err != nil || resp.Err != "" {
			continue
		}
		obj, err := core.DecodeObject(resp.EffectsEncoded)
		if err != nil {
			continue
		}
		return core.ObjectRead{Tag: core.ObjectExists, Object: &obj, ID: id}, nil
	}
	return core.ObjectRead{Tag: core.ObjectNotExists, ID: id}, nil
}

func (ag *HTTPAggregator) SyncAllOwnedObjects(ctx context.Context, addr core.Address, timeout time.Duration) ([]core.Object, []core.ObjectRef, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out []core.Object
	seen := make(map[core.ObjectID]struct{})
	for _, ep := range ag.endpoints {
		body, _ := rlp.EncodeToBytes(addr)
		resp, err := ag.post(callCtx, ep.URL+"/sync_owned_objects", body)
		if err != nil || resp.Err != "" {
			logrus.WithFields(logrus.Fields{"authority": ep.Name.Hex(), "err": err}).Warn("authority: sync unreachable, skipping")
			continue
		}
		var objs []core.Object
		if err := rlp.DecodeBytes(resp.EffectsEncoded, &objs); err != nil {
			continue
		}
		for _, o := range objs {
			if _, dup := seen[o.ID]; dup {
				continue
			}
			seen[o.ID] = struct{}{}
			out = append(out, o)
		}
	}
	return out, nil, nil
}

func (ag *HTTPAggregator) post(ctx context.Context, url string, body []byte) (txBroadcastResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return txBroadcastResponse{}, err
	}
	req.Header.Set("Content-Type", "application/rlp")
	httpResp, err := ag.client.Do(req)
	if err != nil {
		return txBroadcastResponse{}, err
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return txBroadcastResponse{}, err
	}
	var resp txBroadcastResponse
	if err := rlp.DecodeBytes(raw, &resp); err != nil {
		return txBroadcastResponse{}, err
	}
	return resp, nil
}
