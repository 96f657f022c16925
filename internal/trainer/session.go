// Package trainer learns byte-pair merges incrementally from a whitespace-delimited corpus.
//
// By default no learned pair contains the end-of-word marker, so "ab ab ab" learns (a, b) and
// then ends Exhausted. Options.AttachEndOfWord additionally merges a word's last piece with the
// marker, which yields the single token "ab</w>" for the same corpus.
package trainer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/bpetok/internal/logutil"
	"github.com/bpetok/internal/tokenizer"
	"github.com/bpetok/internal/utils"
)

// State is the position of a Session in the training state machine:
//
//	Seeding -> Selecting <-> Applying -> Done | Exhausted
type State int

const (
	StateIdle State = iota
	StateSeeding
	StateSelecting
	StateApplying
	// StateDone: the target vocabulary size or the merge cap was reached.
	StateDone
	// StateExhausted: no mergeable pair was left before the target size.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateSelecting:
		return "selecting"
	case StateApplying:
		return "applying"
	case StateDone:
		return "done"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether training has finished in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateExhausted
}

type Options struct {
	// VocabSize is the target vocabulary size, sentinels included.
	VocabSize int
	// MaxMerges stops training after this many merges; 0 means no cap.
	MaxMerges int
	// AttachEndOfWord allows merging a word's last piece with the end-of-word marker, e.g.
	// (ab, </w>) -> ab</w>. Pairs whose left side already ends a word are still never merged,
	// so no merge spans two words. When false no pair containing the marker is ever merged.
	AttachEndOfWord bool
	// Normalize applies NFC to the corpus before splitting it into characters.
	Normalize bool
}

// Result summarizes a finished training run. Both terminal states are normal completions;
// VocabSize may be smaller than Requested.
type Result struct {
	State     State
	Merges    int
	VocabSize int
	Requested int
}

// Session owns every structure of one training run: vocabulary, token stream, occurrence index,
// priority queue and merge list. Train rebuilds all of them, so runs never observe each other.
// A Session is not safe for concurrent use.
type Session struct {
	opts Options

	vocab  *tokenizer.Vocabulary
	stream *Stream
	queue  *utils.IndexedHeap[tokenizer.Pair]
	index  *occurrenceIndex
	merges []tokenizer.Merge
	state  State
	eow    int

	// afterApply runs after every Applying step; tests use it to check invariants.
	afterApply func()
}

// NewSession returns an idle session with an empty model.
func NewSession(opts Options) *Session {
	s := &Session{opts: opts}
	s.reset(tokenizer.NewVocabulary(), &Stream{})
	return s
}

func (s *Session) reset(vocab *tokenizer.Vocabulary, stream *Stream) {
	s.vocab = vocab
	s.stream = stream
	s.eow = vocab.EndOfWordID()
	if s.queue == nil {
		s.queue = utils.NewIndexedHeap(s.breakTie)
	} else {
		s.queue.Reset()
	}
	s.index = newOccurrenceIndex(stream.Len(), s.queue, s.mergeable)
	s.merges = nil
	s.state = StateIdle
}

// breakTie orders equal-count pairs by left token text, then right token text.
func (s *Session) breakTie(a, b tokenizer.Pair) bool {
	al, _ := s.vocab.Text(a.Left)
	bl, _ := s.vocab.Text(b.Left)
	if c := strings.Compare(al, bl); c != 0 {
		return c < 0
	}

	ar, _ := s.vocab.Text(a.Right)
	br, _ := s.vocab.Text(b.Right)
	return ar < br
}

// mergeable is the word boundary rule every indexed pair must pass. Pairs whose text would
// collide with a sentinel are never indexed, so no merge result reuses a sentinel id.
func (s *Session) mergeable(p tokenizer.Pair) bool {
	if s.opts.AttachEndOfWord {
		if s.vocab.EndsWord(p.Left) {
			return false
		}
	} else if p.Left == s.eow || p.Right == s.eow {
		return false
	}
	return s.vocab.CanMerge(p.Left, p.Right)
}

// TrainFile opens path and trains on it.
func (s *Session) TrainFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("read corpus: %w", err)
	}
	defer f.Close()

	return s.Train(ctx, f)
}

/*
Train reads the whole corpus from r and learns merges until the vocabulary reaches
Options.VocabSize, Options.MaxMerges merges were learned, or no mergeable pair is left.

	step 1: build vocabulary and token stream into locals; a read error returns here and the
	        session keeps whatever it held before
	step 2: reset the session around them and seed the occurrence index with every live adjacency
	step 3: select -> apply until a terminal state

ctx is checked between merges. On cancellation the session holds the merges learned so far.
*/
func (s *Session) Train(ctx context.Context, r io.Reader) (Result, error) {
	vocab := tokenizer.NewVocabulary()
	stream, err := buildStream(r, vocab, s.opts.Normalize)
	if err != nil {
		return Result{}, err
	}

	s.reset(vocab, stream)
	slog.Info("preprocessed training data", "tokens", stream.Len(), "vocab", vocab.Len())

	s.state = StateSeeding
	s.seed()
	slog.Debug("seeded occurrence index", "pairs", s.index.size(), "queued", s.queue.Len())

	for {
		if s.vocab.Len() >= s.opts.VocabSize || (s.opts.MaxMerges > 0 && len(s.merges) >= s.opts.MaxMerges) {
			s.state = StateDone
			break
		}

		if err := ctx.Err(); err != nil {
			return s.result(), err
		}

		s.state = StateSelecting
		p, ok := s.selectPair()
		if !ok {
			s.state = StateExhausted
			break
		}

		s.state = StateApplying
		s.apply(p)
		if s.afterApply != nil {
			s.afterApply()
		}
	}

	res := s.result()
	slog.Info("training complete", "state", res.State, "merges", res.Merges, "vocab", res.VocabSize, "requested", res.Requested)
	return res, nil
}

func (s *Session) result() Result {
	return Result{
		State:     s.state,
		Merges:    len(s.merges),
		VocabSize: s.vocab.Len(),
		Requested: s.opts.VocabSize,
	}
}

func (s *Session) seed() {
	recs := s.stream.records
	for i := range recs {
		if j, ok := s.stream.adjacent(i); ok {
			s.index.record(tokenizer.Pair{Left: recs[i].Tok, Right: recs[j].Tok}, i)
		}
	}
}

// selectPair pops until it finds a handle whose pair still has live occurrences. Popped handles
// may be stale: their pair may have been erased (and the handle discarded) since they were queued.
func (s *Session) selectPair() (tokenizer.Pair, bool) {
	for {
		h, ok := s.queue.PopMax()
		if !ok {
			return tokenizer.Pair{}, false
		}

		p := s.queue.Key(h)
		st, live := s.index.lookup(p)
		switch {
		case !live || st.handle != h:
			s.queue.Release(h)
		case len(st.positions) == 0:
			s.index.erase(p)
		default:
			return p, true
		}
	}
}

/*
apply merges every live occurrence of p into one new token M, left to right over the corpus.

For each occurrence at i (with successor j):

	(a) drop (pred, L) at pred       (d) splice i and j into M
	(b) drop (L, R) at i             (e) record (pred, M) at pred
	(c) drop (R, next) at j          (f) record (M, next) at i

record ignores pairs that would cross a word boundary, which is how (e) and (f) keep the
boundary invariant. Afterwards p is erased since no (L, R) adjacency is left. It may be indexed
again later if another merge produces L or R text a second time.
*/
func (s *Session) apply(p tokenizer.Pair) {
	st, ok := s.index.lookup(p)
	if !ok {
		return
	}

	positions := slices.Clone(st.positions)
	slices.Sort(positions)

	left, _ := s.vocab.Text(p.Left)
	right, _ := s.vocab.Text(p.Right)
	text := left + right
	m, exists := s.vocab.ID(text)

	recs := s.stream.records
	merged := 0
	for _, i := range positions {
		j, ok := s.stream.adjacent(i)
		if !ok || recs[i].Tok != p.Left || recs[j].Tok != p.Right {
			continue
		}

		if merged == 0 && !exists {
			m = s.vocab.Intern(text)
		}

		if pi := s.stream.livePrev(i); pi != -1 {
			s.index.drop(tokenizer.Pair{Left: recs[pi].Tok, Right: p.Left}, pi)
		}
		s.index.drop(p, i)
		if nj := s.stream.liveNext(j); nj != -1 {
			s.index.drop(tokenizer.Pair{Left: p.Right, Right: recs[nj].Tok}, j)
		}

		s.stream.splice(i, m)

		if pi := s.stream.livePrev(i); pi != -1 {
			s.index.record(tokenizer.Pair{Left: recs[pi].Tok, Right: m}, pi)
		}
		if ni := s.stream.liveNext(i); ni != -1 {
			s.index.record(tokenizer.Pair{Left: m, Right: recs[ni].Tok}, i)
		}
		merged++
	}

	s.index.erase(p)
	if merged == 0 {
		return
	}

	s.merges = append(s.merges, tokenizer.Merge{Pair: p, ID: m})
	logutil.Trace("merge", "n", len(s.merges), "left", left, "right", right, "count", merged, "id", m)
}

// State returns the current state of the session.
func (s *Session) State() State {
	return s.state
}

// Vocabulary returns the session's live vocabulary. It changes on the next Train.
func (s *Session) Vocabulary() *tokenizer.Vocabulary {
	return s.vocab
}

// Merges returns a copy of the ordered merge list.
func (s *Session) Merges() []tokenizer.Merge {
	return slices.Clone(s.merges)
}

// Stream returns the session's token stream.
func (s *Session) Stream() *Stream {
	return s.stream
}

// Model snapshots the vocabulary and merge list into an independent model.
func (s *Session) Model() *tokenizer.Model {
	return &tokenizer.Model{
		Vocab:      s.vocab.Clone(),
		Merges:     slices.Clone(s.merges),
		Normalized: s.opts.Normalize,
	}
}
