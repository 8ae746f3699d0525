package similarity

import "github.com/cespare/xxhash/v2"

// Signature is a MinHash fingerprint: one minimum per hash round.
type Signature []uint64

// hashSeeds derives one mixing seed per round from a fixed-seed
// splitmix64 sequence, so signatures are stable across runs.
func hashSeeds(rounds int) []uint64 {
	seeds := make([]uint64, rounds)
	state := uint64(0x9e3779b97f4a7c15)
	for i := range seeds {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		seeds[i] = z ^ (z >> 31)
	}
	return seeds
}

// MinHash computes the signature of a shingle set: each shingle is
// hashed once with xxhash, mixed with each round's seed, and every
// round keeps its minimum.
func MinHash(shingles map[string]struct{}, seeds []uint64) Signature {
	sig := make(Signature, len(seeds))
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for shingle := range shingles {
		base := xxhash.Sum64String(shingle)
		for i, seed := range seeds {
			h := mix(base ^ seed)
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// Similarity estimates Jaccard similarity as the fraction of rounds on
// which two signatures agree.
func (s Signature) Similarity(other Signature) float64 {
	if len(s) == 0 || len(s) != len(other) {
		return 0
	}
	match := 0
	for i := range s {
		if s[i] == other[i] {
			match++
		}
	}
	return float64(match) / float64(len(s))
}

func mix(z uint64) uint64 {
	z = (z ^ (z >> 33)) * 0xff51afd7ed558ccd
	z = (z ^ (z >> 33)) * 0xc4ceb9fe1a85ec53
	return z ^ (z >> 33)
}
