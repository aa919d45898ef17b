package smoke

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tkmct/substrate-smoke/substrate"
)

// StorageReader is the read-only storage access a scan needs from a node.
type StorageReader interface {
	GetKeysPaged(ctx context.Context, prefix []byte, count int, startKey []byte, at common.Hash) ([][]byte, error)
	QueryStorageAt(ctx context.Context, keys [][]byte, at common.Hash) ([][]byte, error)
}

// EnumerateKeys collects every storage key under prefix at block at, reading
// pageSize keys per request. Paging starts at the prefix itself and stops at
// the first page without matching keys, so a prefix with no entries yields an
// empty result after a single request.
func EnumerateKeys(ctx context.Context, reader StorageReader, prefix []byte, pageSize int, at common.Hash, progress *Progress) ([][]byte, error) {
	var (
		keys   [][]byte
		cursor = prefix
	)
	for {
		page, err := reader.GetKeysPaged(ctx, prefix, pageSize, cursor, at)
		if err != nil {
			return nil, fmt.Errorf("failed to page storage keys after %#x: %w", cursor, err)
		}
		matched := make([][]byte, 0, len(page))
		for _, key := range page {
			// Nodes are not trusted to stay inside the prefix.
			if substrate.HasKeyPrefix(key, prefix) {
				matched = append(matched, key)
			}
		}
		if len(matched) == 0 {
			return keys, nil
		}
		keys = append(keys, matched...)
		scanKeysTotal.Inc(int64(len(matched)))

		cursor = matched[len(matched)-1]
		progress.Add(len(matched), 0)
	}
}
