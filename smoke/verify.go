package smoke

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tkmct/substrate-smoke/substrate"
)

// MaxCodeSize is the largest contract bytecode the EVM accepts (EIP-170).
const MaxCodeSize = 24576

// FailureRecord is an account whose code exceeds the size limit.
type FailureRecord struct {
	AccountID common.Address
	CodeSize  int
}

// VerifyResult summarizes a verification pass.
type VerifyResult struct {
	Checked  int
	Largest  int
	Failures []FailureRecord
}

// CodeSize returns the bytecode length stored in an EVM.AccountCodes value.
// Every enumerated account must have a value, so an empty one is an error.
func CodeSize(value []byte) (int, error) {
	if len(value) == 0 {
		return 0, substrate.ErrEmptyStorageValue
	}
	code, err := substrate.StripCompactLength(value)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

// VerifyCodeSizes fetches the code behind every key and flags each one larger
// than maxCodeSize. Keys are consumed from the end of the slice, batchSize at
// a time, one request per batch; the caller's slice is emptied as it goes.
func VerifyCodeSizes(ctx context.Context, reader StorageReader, keys [][]byte, batchSize, maxCodeSize int, at common.Hash, progress *Progress) (*VerifyResult, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("invalid batch size %d", batchSize)
	}
	res := new(VerifyResult)
	for len(keys) > 0 {
		batch := make([][]byte, 0, min(batchSize, len(keys)))
		for len(batch) < batchSize && len(keys) > 0 {
			last := len(keys) - 1
			batch = append(batch, keys[last])
			keys[last] = nil
			keys = keys[:last]
		}
		values, err := reader.QueryStorageAt(ctx, batch, at)
		if err != nil {
			return nil, fmt.Errorf("failed to query %d storage values: %w", len(batch), err)
		}
		if len(values) != len(batch) {
			return nil, fmt.Errorf("node returned %d storage values for %d keys", len(values), len(batch))
		}
		for i, value := range values {
			account := substrate.AccountIDFromKey(batch[i])
			size, err := CodeSize(value)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", account.Hex(), err)
			}
			res.Checked++
			if size > res.Largest {
				res.Largest = size
			}
			if size > maxCodeSize {
				res.Failures = append(res.Failures, FailureRecord{AccountID: account, CodeSize: size})
				scanOversizedTotal.Inc(1)
			}
		}
		scanCheckedTotal.Inc(int64(len(batch)))
		progress.Add(len(batch), len(keys))
	}
	scanLargestCode.Update(int64(res.Largest))
	return res, nil
}
