// Package substratetest provides an in-memory Substrate node that serves the
// chain_* and state_* JSON-RPC methods used by the smoke checks.
package substratetest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tkmct/substrate-smoke/substrate"
)

// BlockHash returns the deterministic hash the mock node assigns to a block
// number.
func BlockHash(number uint64) common.Hash {
	var h common.Hash
	h[0] = 0xbb
	binary.BigEndian.PutUint64(h[24:], number)
	return h
}

// Node is a mock Substrate node with a single, immutable-per-test storage
// state that is visible at every known block.
type Node struct {
	mu        sync.Mutex
	keys      [][]byte // sorted
	values    map[string][]byte
	head      uint64
	finalized uint64

	foreignKey []byte // appended to every non-empty key page when set
	failures   map[string]error

	keysPagedCalls    int
	queryStorageCalls int
	valuesServed      int
}

// NewNode creates a mock node whose chain is head blocks long, with the
// finalized head set to head.
func NewNode(head uint64) *Node {
	return &Node{
		values:    make(map[string][]byte),
		head:      head,
		finalized: head,
		failures:  make(map[string]error),
	}
}

// SetStorage stores value under key. A nil value keeps the key enumerable
// but makes state_queryStorageAt report it as absent.
func (n *Node) SetStorage(key, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	k := string(key)
	if _, ok := n.values[k]; !ok {
		n.keys = append(n.keys, common.CopyBytes(key))
		sort.Slice(n.keys, func(i, j int) bool { return bytes.Compare(n.keys[i], n.keys[j]) < 0 })
	}
	n.values[k] = common.CopyBytes(value)
}

// SetFinalized moves the finalized head.
func (n *Node) SetFinalized(number uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finalized = number
}

// LeakForeignKey makes every non-empty key page carry key as well, emulating
// a node that returns keys outside the requested prefix.
func (n *Node) LeakForeignKey(key []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.foreignKey = common.CopyBytes(key)
}

// Fail makes the given RPC method (e.g. "state_getKeysPaged") return err.
func (n *Node) Fail(method string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = err
}

// KeysPagedCalls returns how many state_getKeysPaged requests were served.
func (n *Node) KeysPagedCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.keysPagedCalls
}

// QueryStorageCalls returns how many state_queryStorageAt requests were served.
func (n *Node) QueryStorageCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queryStorageCalls
}

// ValuesServed returns the total number of keys looked up through
// state_queryStorageAt.
func (n *Node) ValuesServed() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.valuesServed
}

// Server returns an RPC server exposing the node.
func (n *Node) Server() (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("chain", &chainAPI{n}); err != nil {
		return nil, fmt.Errorf("register chain API: %w", err)
	}
	if err := server.RegisterName("state", &stateAPI{n}); err != nil {
		return nil, fmt.Errorf("register state API: %w", err)
	}
	return server, nil
}

// Dial starts an in-process server for the node and returns a client bound to
// it. Both are torn down when the test finishes.
func (n *Node) Dial(t testing.TB, cfg substrate.ClientConfig) *substrate.Client {
	t.Helper()

	server, err := n.Server()
	if err != nil {
		t.Fatalf("mock node: %v", err)
	}
	client := substrate.NewClient(rpc.DialInProc(server), cfg)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func (n *Node) failure(method string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failures[method]
}

// knownBlockLocked reports whether hash belongs to the mock chain. Caller
// must hold n.mu.
func (n *Node) knownBlockLocked(hash common.Hash) bool {
	number := binary.BigEndian.Uint64(hash[24:])
	return number <= n.head && BlockHash(number) == hash
}

type chainAPI struct{ n *Node }

func (api *chainAPI) GetBlockHash(number uint64) (*common.Hash, error) {
	if err := api.n.failure("chain_getBlockHash"); err != nil {
		return nil, err
	}
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	if number > api.n.head {
		return nil, nil
	}
	h := BlockHash(number)
	return &h, nil
}

func (api *chainAPI) GetFinalizedHead() (common.Hash, error) {
	if err := api.n.failure("chain_getFinalizedHead"); err != nil {
		return common.Hash{}, err
	}
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return BlockHash(api.n.finalized), nil
}

func (api *chainAPI) GetHeader(hash common.Hash) (*substrate.Header, error) {
	if err := api.n.failure("chain_getHeader"); err != nil {
		return nil, err
	}
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	if !api.n.knownBlockLocked(hash) {
		return nil, nil
	}
	number := binary.BigEndian.Uint64(hash[24:])
	header := &substrate.Header{Number: hexutil.Uint64(number)}
	if number > 0 {
		header.ParentHash = BlockHash(number - 1)
	}
	return header, nil
}

type stateAPI struct{ n *Node }

var errUnknownBlock = errors.New("unknown block")

func (api *stateAPI) GetKeysPaged(ctx context.Context, prefix hexutil.Bytes, count int, startKey *hexutil.Bytes, at *common.Hash) ([]hexutil.Bytes, error) {
	if err := api.n.failure("state_getKeysPaged"); err != nil {
		return nil, err
	}
	api.n.mu.Lock()
	defer api.n.mu.Unlock()

	api.n.keysPagedCalls++
	if at != nil && !api.n.knownBlockLocked(*at) {
		return nil, errUnknownBlock
	}
	var start []byte
	if startKey != nil {
		start = *startKey
	}
	page := make([]hexutil.Bytes, 0, count)
	for _, k := range api.n.keys {
		if len(page) == count {
			break
		}
		if !bytes.HasPrefix(k, prefix) || bytes.Compare(k, start) <= 0 {
			continue
		}
		page = append(page, common.CopyBytes(k))
	}
	if len(page) > 0 && api.n.foreignKey != nil {
		page = append(page, common.CopyBytes(api.n.foreignKey))
	}
	return page, nil
}

func (api *stateAPI) QueryStorageAt(ctx context.Context, keys []hexutil.Bytes, at *common.Hash) ([]substrate.StorageChangeSet, error) {
	if err := api.n.failure("state_queryStorageAt"); err != nil {
		return nil, err
	}
	api.n.mu.Lock()
	defer api.n.mu.Unlock()

	api.n.queryStorageCalls++
	api.n.valuesServed += len(keys)
	block := BlockHash(api.n.finalized)
	if at != nil {
		if !api.n.knownBlockLocked(*at) {
			return nil, errUnknownBlock
		}
		block = *at
	}
	set := substrate.StorageChangeSet{Block: block, Changes: make([]substrate.StorageChange, 0, len(keys))}
	for _, k := range keys {
		key := hexutil.Bytes(common.CopyBytes(k))
		var change substrate.StorageChange
		change[0] = &key
		if v := api.n.values[string(k)]; v != nil {
			value := hexutil.Bytes(common.CopyBytes(v))
			change[1] = &value
		}
		set.Changes = append(set.Changes, change)
	}
	return []substrate.StorageChangeSet{set}, nil
}
