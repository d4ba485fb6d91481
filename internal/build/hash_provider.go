package build

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
)

// HashProvider derives content hashes. Hash and FileHash use CRC32
// Castagnoli and serve change detection only; file hashes are memoized under
// a path, mtime and size key so unchanged files are not read twice.
// ContentKey keys shared cache entries.
type HashProvider struct {
	cache    *TransformCache
	crcTable *crc32.Table
	pools    *ObjectPools
}

// NewHashProvider creates a hash provider. cache may be nil.
func NewHashProvider(cache *TransformCache, pools *ObjectPools) *HashProvider {
	if pools == nil {
		pools = NewObjectPools()
	}
	return &HashProvider{
		cache:    cache,
		crcTable: crc32.MakeTable(crc32.Castagnoli),
		pools:    pools,
	}
}

// Hash returns the hex CRC32-C of data followed by its length.
func (hp *HashProvider) Hash(data []byte) string {
	sum := crc32.Checksum(data, hp.crcTable)
	return strconv.FormatUint(uint64(sum), 16) + "-" + strconv.Itoa(len(data))
}

// ContentKey returns the hex SHA-256 of data.
func (hp *HashProvider) ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileHash hashes the file at path. The metadata cache is consulted first.
func (hp *HashProvider) FileHash(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	metadataKey := fmt.Sprintf("meta|%s|%d|%d", path, stat.ModTime().UnixNano(), stat.Size())
	if hp.cache != nil {
		if hash, found := hp.cache.GetHash(metadataKey); found {
			return hash, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buf := hp.pools.GetBuffer()
	defer hp.pools.PutBuffer(buf)
	if _, err := io.Copy(buf, file); err != nil {
		return "", err
	}

	hash := hp.Hash(buf.Bytes())
	if hp.cache != nil {
		hp.cache.SetHash(metadataKey, hash)
	}
	return hash, nil
}

// HashBatch hashes several files. Unreadable files are omitted.
func (hp *HashProvider) HashBatch(paths []string) map[string]string {
	results := make(map[string]string, len(paths))
	for _, path := range paths {
		if hash, err := hp.FileHash(path); err == nil {
			results[path] = hash
		}
	}
	return results
}
