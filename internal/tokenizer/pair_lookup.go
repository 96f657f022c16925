package tokenizer

// PairLookup provides fast lookup of merge info (rank and merged token) using a hybrid approach:
// - 2D array for pairs where both tokens are < fastLookupSize (O(1) lookup)
// - Map fallback for larger pairs
type PairLookup struct {
	fastLookup     [][]uint64
	fastLookupSize int
	fallback       map[uint64]uint64

	// later holds the ranks after the first for pairs merged more than once, ascending
	later map[uint64][]int
}

const maxFastLookupSize = 256

func packPair(a, b int) uint64 {
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

func packInfo(rank, id int) uint64 {
	return uint64(uint32(rank))<<32 | uint64(uint32(id))
}

// NewPairLookup indexes merges by pair. A pair can appear more than once when two different merges
// produce the same text; Lookup reports the first rank and RankFrom the rest.
func NewPairLookup(merges []Merge, vocabSize int) *PairLookup {
	fastLookupSize := min(vocabSize, maxFastLookupSize)

	fastLookup := make([][]uint64, fastLookupSize)
	for i := range fastLookup {
		fastLookup[i] = make([]uint64, fastLookupSize)
		for j := range fastLookup[i] {
			fastLookup[i][j] = ^uint64(0)
		}
	}

	pl := &PairLookup{
		fastLookup:     fastLookup,
		fastLookupSize: fastLookupSize,
		fallback:       make(map[uint64]uint64),
		later:          make(map[uint64][]int),
	}

	for rank, mg := range merges {
		if _, seen := pl.Lookup(mg.Left, mg.Right); seen {
			key := packPair(mg.Left, mg.Right)
			pl.later[key] = append(pl.later[key], rank)
			continue
		}

		value := packInfo(rank, mg.ID)
		if pl.fast(mg.Left, mg.Right) {
			fastLookup[mg.Left][mg.Right] = value
		} else {
			pl.fallback[packPair(mg.Left, mg.Right)] = value
		}
	}

	return pl
}

func (pl *PairLookup) fast(a, b int) bool {
	return a >= 0 && a < pl.fastLookupSize && b >= 0 && b < pl.fastLookupSize
}

// Lookup returns the pair info (rank << 32 | tokenID) and whether it was found
func (pl *PairLookup) Lookup(a, b int) (uint64, bool) {
	if pl.fast(a, b) {
		value := pl.fastLookup[a][b]
		if value+1 != 0 {
			return value, true
		}
		return 0, false
	}

	value, ok := pl.fallback[packPair(a, b)]
	return value, ok
}

// Rank returns the rank of the merge for (a, b) and the token it produces.
func (pl *PairLookup) Rank(a, b int) (rank, id int, ok bool) {
	info, ok := pl.Lookup(a, b)
	if !ok {
		return 0, 0, false
	}
	return int(info >> 32), int(info & 0xFFFFFFFF), true
}

// RankFrom is Rank restricted to ranks >= floor.
func (pl *PairLookup) RankFrom(a, b, floor int) (rank, id int, ok bool) {
	rank, id, ok = pl.Rank(a, b)
	if !ok || rank >= floor {
		return rank, id, ok
	}

	for _, r := range pl.later[packPair(a, b)] {
		if r >= floor {
			return r, id, true
		}
	}
	return 0, 0, false
}
