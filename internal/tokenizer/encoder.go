package tokenizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bpetok/internal/logutil"
	"github.com/bpetok/internal/utils"
)

// OOVPolicy decides what the encoder does with a character the vocabulary has never seen.
type OOVPolicy int

const (
	// OOVExtend interns the character as a new single-character token.
	OOVExtend OOVPolicy = iota
	// OOVReject fails the whole call with *OutOfVocabularyError.
	OOVReject
)

func (p OOVPolicy) String() string {
	switch p {
	case OOVExtend:
		return "extend"
	case OOVReject:
		return "reject"
	default:
		return fmt.Sprintf("OOVPolicy(%d)", int(p))
	}
}

// ParseOOVPolicy accepts "extend" or "reject".
func ParseOOVPolicy(s string) (OOVPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extend", "":
		return OOVExtend, nil
	case "reject":
		return OOVReject, nil
	default:
		return 0, fmt.Errorf("unknown oov policy %q (want extend or reject)", s)
	}
}

type EncoderOptions struct {
	OOV OOVPolicy
	// Normalize applies NFC before splitting. Use the same setting the model was trained with.
	Normalize bool
}

// Encoder replays a model's merges over new text. It keeps scratch buffers between calls, so an
// Encoder must not be shared between goroutines. Under OOVExtend it also grows the model's vocabulary.
type Encoder struct {
	model *Model
	opts  EncoderOptions

	lookup *PairLookup
	eow    int

	queue   utils.MergeQueue
	scratch encodeScratch
}

// NewEncoder builds an encoder for m.
func NewEncoder(m *Model, opts EncoderOptions) *Encoder {
	return &Encoder{
		model:  m,
		opts:   opts,
		lookup: NewPairLookup(m.Merges, m.Vocab.Len()),
		eow:    m.Vocab.EndOfWordID(),
		queue:  utils.NewMergeQueue(),
	}
}

// Model returns the model this encoder replays.
func (e *Encoder) Model() *Model {
	return e.model
}

// Encode splits text into words and returns the resulting token pieces, word by word in input order.
func (e *Encoder) Encode(text string) ([]string, error) {
	ids, err := e.EncodeIDs(text)
	if err != nil {
		return nil, err
	}
	return e.model.Pieces(ids)
}

// EncodeIDs is Encode returning token ids. Under OOVReject nothing is returned if any character is unknown.
func (e *Encoder) EncodeIDs(text string) ([]int, error) {
	if e.opts.Normalize {
		text = norm.NFC.String(text)
	}

	var out []int
	for _, word := range strings.Fields(text) {
		ids, err := e.encodeWord(word)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}

	logutil.Trace("encoded", "string", text, "ids", out)
	return out, nil
}

func (e *Encoder) wordTokens(word string) ([]int, error) {
	tokens := make([]int, 0, len(word)+1)

	var oov error
	EachCharacter(word, func(ch string) {
		if oov != nil {
			return
		}

		id, ok := e.model.Vocab.ID(ch)
		if !ok {
			if e.opts.OOV == OOVReject {
				oov = &OutOfVocabularyError{Text: ch}
				return
			}
			id = e.model.Vocab.Intern(ch)
		}
		tokens = append(tokens, id)
	})
	if oov != nil {
		return nil, oov
	}

	return append(tokens, e.eow), nil
}

func (e *Encoder) encodeWord(word string) ([]int, error) {
	tokens, err := e.wordTokens(word)
	if err != nil {
		return nil, err
	}
	return e.mergeWord(tokens), nil
}

/*
mergeWord applies the merge list to one word's tokens with the same result as replaying the merges
one by one in rank order, each one left to right over non-overlapping matches.

Rather than scanning the word once per merge, every adjacent pair that has a merge is kept in a
queue ordered by (rank, position). Popping the lowest rank first walks the merge list in order,
and popping the leftmost position within a rank gives the left-to-right, non-overlapping scan.
floor is the rank currently being replayed: a pair formed later with a rank below it was skipped
by the sequential replay, so only a later rank of the same pair can admit it.
*/
func (e *Encoder) mergeWord(tokens []int) []int {
	n := len(tokens)
	if n < 2 {
		return tokens
	}

	sc := &e.scratch
	sc.prepare(n)

	// doubly linked-list
	prev := sc.prev
	next := sc.next
	for i := 0; i < n; i++ {
		prev[i] = i - 1
		next[i] = i + 1
	}
	next[n-1] = -1

	// per-slot versioning to invalidate queued candidates
	liveVersion := sc.live
	for i := range liveVersion {
		liveVersion[i] = 0
	}

	q := e.queue
	q.Reset()
	floor := 0

	pushIfMergeable := func(i int) {
		if i == -1 {
			return
		}
		j := next[i]
		if j == -1 {
			return
		}

		rank, _, ok := e.lookup.RankFrom(tokens[i], tokens[j], floor)
		if !ok {
			return
		}

		q.Push(utils.MergeCand{
			Rank:       rank,
			Pos:        i,
			LeftToken:  tokens[i],
			RightToken: tokens[j],
			VerL:       liveVersion[i],
			VerR:       liveVersion[j],
		})
	}

	for i := 0; i != -1; i = next[i] {
		pushIfMergeable(i)
	}

	for {
		c, ok := q.Pop()
		if !ok {
			break
		}

		i := c.Pos
		j := next[i]
		if j == -1 {
			continue
		}

		// stale entry since at least one side changed after it was queued
		if liveVersion[i] != c.VerL || liveVersion[j] != c.VerR {
			continue
		}
		if tokens[i] != c.LeftToken || tokens[j] != c.RightToken {
			continue
		}

		_, merged, _ := e.lookup.Rank(tokens[i], tokens[j])
		floor = c.Rank

		tokens[i] = merged // collapse into slot i
		nj := next[j]
		next[i] = nj
		if nj != -1 {
			prev[nj] = i
		}
		prev[j], next[j] = -1, -1

		liveVersion[i]++
		liveVersion[j]++

		pushIfMergeable(prev[i])
		pushIfMergeable(i)
	}

	// slot 0 never dies; we always merge into the left slot
	out := make([]int, 0, n)
	for i := 0; i != -1; i = next[i] {
		out = append(out, tokens[i])
	}

	return out
}

type encodeScratch struct {
	prev []int
	next []int
	live []int
}

func (sc *encodeScratch) prepare(n int) {
	sc.prev = ensureIntCapacity(sc.prev, n)
	sc.next = ensureIntCapacity(sc.next, n)
	sc.live = ensureIntCapacity(sc.live, n)
}

func ensureIntCapacity(buf []int, n int) []int {
	if cap(buf) < n {
		return make([]int, n)
	}
	return buf[:n]
}
