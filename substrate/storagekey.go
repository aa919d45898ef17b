package substrate

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Twox128 returns the 128 bit xxHash64 concatenation used by FRAME to hash
// pallet and storage item names: xxh64(seed=0) || xxh64(seed=1), both little
// endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		d.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], d.Sum64())
	}
	return out
}

// StorageKey returns the storage prefix of a pallet storage item.
func StorageKey(pallet, item string) []byte {
	return append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
}

// EVMAccountCodesPrefix is the key prefix of the EVM.AccountCodes map.
var EVMAccountCodesPrefix = StorageKey("EVM", "AccountCodes")

// HasKeyPrefix reports whether key lives under prefix.
func HasKeyPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

// AccountIDFromKey extracts the H160 account id that terminates a
// Blake2_128Concat(H160) map key.
func AccountIDFromKey(key []byte) common.Address {
	return common.BytesToAddress(key)
}
