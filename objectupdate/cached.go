package objectupdate

import "github.com/cinderblocks/libremetaverse-sub004/protocol"

// CachedEntry is one (local_id, crc) pair offered by an
// ObjectUpdateCached message.
type CachedEntry struct {
	LocalID uint32
	CRC     uint32
}

// decodeCachedBlock reads one (local_id, crc) pair.
func decodeCachedBlock(r *protocol.Reader) (CachedEntry, error) {
	localID, err := r.U32()
	if err != nil {
		return CachedEntry{}, err
	}
	crc, err := r.U32()
	if err != nil {
		return CachedEntry{}, err
	}
	return CachedEntry{LocalID: localID, CRC: crc}, nil
}

// CacheChecker decides, per entity, whether a locally cached CRC is
// still valid; a mismatch (or an unknown local id) is a cache miss.
type CacheChecker func(localID uint32, crc uint32) (hit bool)
