package substrate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockAnchor identifies the block a read-only scan is pinned to.
type BlockAnchor struct {
	Number uint64
	Hash   common.Hash
}

// Header is the subset of a Substrate block header returned by
// chain_getHeader that the smoke checks need.
type Header struct {
	ParentHash     common.Hash    `json:"parentHash"`
	Number         hexutil.Uint64 `json:"number"`
	StateRoot      common.Hash    `json:"stateRoot"`
	ExtrinsicsRoot common.Hash    `json:"extrinsicsRoot"`
}

// StorageChangeSet mirrors one entry of the state_queryStorageAt response.
// Each change is a [key, value] pair where value is null for absent entries.
type StorageChangeSet struct {
	Block   common.Hash     `json:"block"`
	Changes []StorageChange `json:"changes"`
}

// StorageChange is a single [key, value] tuple.
type StorageChange [2]*hexutil.Bytes
