package registry

import "github.com/cespare/xxhash/v2"

func hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// indexByHash picks the shard owning key.
func indexByHash(key string, numShards int) int {
	switch numShards {
	case 0:
		panic("number of shards cannot be 0")
	case 1:
		return 0
	default:
		return int(hash(key) % uint64(numShards))
	}
}

func normalizeShards(numShards int) int {
	if numShards <= 0 {
		return 1
	}
	return numShards
}
