package substrate

import (
	"context"
	"fmt"
)

// ResolveAnchor pins a scan to a block. A nil number selects the finalized
// head; otherwise the canonical block with that number is used.
func (c *Client) ResolveAnchor(ctx context.Context, number *uint64) (*BlockAnchor, error) {
	var err error
	anchor := new(BlockAnchor)
	if number != nil {
		anchor.Hash, err = c.GetBlockHash(ctx, *number)
	} else {
		anchor.Hash, err = c.GetFinalizedHead(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve anchor block: %w", err)
	}
	header, err := c.GetHeader(ctx, anchor.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read anchor header: %w", err)
	}
	anchor.Number = uint64(header.Number)
	return anchor, nil
}
