package substrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// ErrBlockNotFound is returned when the node has no block for the requested
// number or hash.
var ErrBlockNotFound = errors.New("block not found")

// ClientConfig controls request pacing of a Client.
type ClientConfig struct {
	RateLimit float64       // Requests per second (0 = unlimited)
	Burst     int           // Requests allowed past the rate limit at once
	Timeout   time.Duration // Per request timeout (0 = none)
}

// DefaultClientConfig paces requests the way the smoke suites expect from a
// shared public endpoint.
var DefaultClientConfig = ClientConfig{
	RateLimit: 20,
	Burst:     1,
	Timeout:   2 * time.Minute,
}

// Client is a read-only Substrate JSON-RPC client. Every request goes
// through one shared limiter.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// Dial connects to a Substrate node over HTTP or WebSocket.
func Dial(ctx context.Context, endpoint string, cfg ClientConfig) (*Client, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return NewClient(c, cfg), nil
}

// NewClient wraps an established RPC connection.
func NewClient(c *rpc.Client, cfg ClientConfig) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		rpc:     c,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
	}
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	rpcThrottleWait.UpdateSince(waitStart)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	rpcRequestsTotal.Inc(1)
	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	rpcLatency.UpdateSince(start)
	if err != nil {
		rpcErrorsTotal.Inc(1)
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// GetBlockHash returns the canonical hash of the block with the given number.
func (c *Client) GetBlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	var hash *common.Hash
	if err := c.call(ctx, &hash, "chain_getBlockHash", number); err != nil {
		return common.Hash{}, err
	}
	if hash == nil {
		return common.Hash{}, fmt.Errorf("%w: #%d", ErrBlockNotFound, number)
	}
	return *hash, nil
}

// GetFinalizedHead returns the hash of the latest finalized block.
func (c *Client) GetFinalizedHead(ctx context.Context) (common.Hash, error) {
	var hash common.Hash
	if err := c.call(ctx, &hash, "chain_getFinalizedHead"); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// GetHeader returns the header of the block with the given hash.
func (c *Client) GetHeader(ctx context.Context, hash common.Hash) (*Header, error) {
	var header *Header
	if err := c.call(ctx, &header, "chain_getHeader", hash); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	return header, nil
}

// GetKeysPaged returns up to count storage keys under prefix that sort
// strictly after startKey, read at block at.
func (c *Client) GetKeysPaged(ctx context.Context, prefix []byte, count int, startKey []byte, at common.Hash) ([][]byte, error) {
	var keys []hexutil.Bytes
	if err := c.call(ctx, &keys, "state_getKeysPaged", hexutil.Bytes(prefix), count, hexutil.Bytes(startKey), at); err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out, nil
}

// QueryStorageAt reads the values of keys at block at. The result is
// positional: values[i] belongs to keys[i] and is nil for absent entries.
func (c *Client) QueryStorageAt(ctx context.Context, keys [][]byte, at common.Hash) ([][]byte, error) {
	params := make([]hexutil.Bytes, len(keys))
	for i, k := range keys {
		params[i] = k
	}
	var sets []StorageChangeSet
	if err := c.call(ctx, &sets, "state_queryStorageAt", params, at); err != nil {
		return nil, err
	}
	found := make(map[string][]byte, len(keys))
	for _, set := range sets {
		for _, change := range set.Changes {
			if change[0] == nil {
				continue
			}
			var value []byte
			if change[1] != nil {
				value = *change[1]
			}
			found[string(*change[0])] = value
		}
	}
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = found[string(k)]
	}
	return values, nil
}
