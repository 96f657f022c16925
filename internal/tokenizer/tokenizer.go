package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMalformedModel is wrapped by every model parse failure.
	ErrMalformedModel = errors.New("malformed model file")
	// ErrOutOfVocabulary is matched by *OutOfVocabularyError.
	ErrOutOfVocabulary = errors.New("out of vocabulary")
)

// OutOfVocabularyError reports text that has no id in the vocabulary.
type OutOfVocabularyError struct {
	Text string
}

func (e *OutOfVocabularyError) Error() string {
	return fmt.Sprintf("out of vocabulary: %q", e.Text)
}

func (e *OutOfVocabularyError) Is(target error) bool {
	return target == ErrOutOfVocabulary
}

// Pair is an ordered pair of adjacent token ids. (a, b) and (b, a) are different pairs.
type Pair struct {
	Left  int
	Right int
}

// Merge records that Pair was replaced by token ID. The position of a Merge in Model.Merges is its rank.
type Merge struct {
	Pair
	ID int
}

// Model is the output of training: a vocabulary and the ordered merge list.
// Invariants we maintain:
//   - Merges[i].ID is the id of Text(Left)+Text(Right)
//   - the vocabulary contains EndOfWord
type Model struct {
	Vocab  *Vocabulary
	Merges []Merge

	// Normalized records that the training corpus was NFC-normalized; encoders must do the same
	// for their output to agree with training.
	Normalized bool
}

// IDs maps token texts to their ids, failing with *OutOfVocabularyError on the first unknown text.
func (m *Model) IDs(pieces []string) ([]int, error) {
	out := make([]int, 0, len(pieces))
	for _, p := range pieces {
		id, ok := m.Vocab.ID(p)
		if !ok {
			return nil, &OutOfVocabularyError{Text: p}
		}
		out = append(out, id)
	}
	return out, nil
}

// Pieces maps ids back to token texts.
func (m *Model) Pieces(ids []int) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		text, ok := m.Vocab.Text(id)
		if !ok {
			return nil, fmt.Errorf("token id out of range: %d", id)
		}
		out = append(out, text)
	}
	return out, nil
}

/*
Save writes the model in the line-oriented text format:

	VOCAB_SIZE <int>
	NORMALIZE NFC             (only for normalized models)
	VOCAB
	<token-text>\t<id>
	MERGES
	<first-token-text> <second-token-text>

Vocabulary lines are written in id order; merge lines in rank order, which is what the encoder replays.
*/
func (m *Model) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "VOCAB_SIZE %d\n", m.Vocab.Len())
	if m.Normalized {
		bw.WriteString("NORMALIZE NFC\n")
	}
	bw.WriteString("VOCAB\n")
	for id, text := range m.Vocab.values {
		fmt.Fprintf(bw, "%s\t%d\n", text, id)
	}

	bw.WriteString("MERGES\n")
	for _, mg := range m.Merges {
		left, _ := m.Vocab.Text(mg.Left)
		right, _ := m.Vocab.Text(mg.Right)
		fmt.Fprintf(bw, "%s %s\n", left, right)
	}

	return bw.Flush()
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error while creating model file: %w", err)
	}

	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("error while writing model file: %w", err)
	}

	return f.Close()
}

// LoadModelFile reads a model saved by SaveFile.
func LoadModelFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error while reading model file : %w", err)
	}
	defer f.Close()

	m, err := ReadModel(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedModel, line, fmt.Sprintf(format, args...))
}

/*
ReadModel parses the format written by Save. Nothing is returned unless the whole input parses.

	step 1: headers. VOCAB_SIZE <int>, an optional NORMALIZE NFC, then VOCAB.
	step 2: vocabulary entries until MERGES or EOF. ids must be dense; the size is max(id)+1
	        and the declared VOCAB_SIZE is only checked, never trusted.
	step 3: merges in rank order. Both operands and the merged text must be in the vocabulary,
	        and the merge must pass Vocabulary.CanMerge.
*/
func ReadModel(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNo++
		return strings.TrimRight(sc.Text(), "\r"), true
	}

	line, ok := next()
	if !ok {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("error while reading model: %w", err)
		}
		return nil, malformed(1, "expected VOCAB_SIZE header, got EOF")
	}

	rest, found := strings.CutPrefix(line, "VOCAB_SIZE ")
	if !found {
		return nil, malformed(lineNo, "expected VOCAB_SIZE header, got %q", line)
	}

	declared, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return nil, malformed(lineNo, "invalid VOCAB_SIZE %q", rest)
	}

	line, ok = next()
	normalized := false
	if form, found := strings.CutPrefix(line, "NORMALIZE "); ok && found {
		if form != "NFC" {
			return nil, malformed(lineNo, "unsupported normalization %q", form)
		}
		normalized = true
		line, ok = next()
	}
	if !ok || line != "VOCAB" {
		return nil, malformed(lineNo, "expected VOCAB header")
	}

	byID := make(map[int]string)
	ids := make(map[string]int)
	maxID := -1
	sawMerges := false
	for {
		line, ok = next()
		if !ok {
			break
		}
		if line == "MERGES" {
			sawMerges = true
			break
		}
		if line == "" {
			continue
		}

		tab := strings.LastIndexByte(line, '\t')
		if tab <= 0 {
			return nil, malformed(lineNo, "expected <token>\\t<id>, got %q", line)
		}

		text := line[:tab]
		id, err := strconv.Atoi(line[tab+1:])
		if err != nil || id < 0 {
			return nil, malformed(lineNo, "invalid token id %q", line[tab+1:])
		}
		if prev, dup := byID[id]; dup {
			return nil, malformed(lineNo, "id %d assigned to both %q and %q", id, prev, text)
		}
		if prev, dup := ids[text]; dup {
			return nil, malformed(lineNo, "token %q assigned to both %d and %d", text, prev, id)
		}

		byID[id] = text
		ids[text] = id
		maxID = max(maxID, id)
	}

	size := maxID + 1
	for i := 0; i < size; i++ {
		if _, ok := byID[i]; !ok {
			return nil, malformed(lineNo, "vocab not dense and missing %d", i)
		}
	}

	if declared != size {
		slog.Warn("model vocabulary size mismatch, using derived size", "declared", declared, "derived", size)
	}

	vocab := &Vocabulary{
		values: make([]string, size),
		ids:    ids,
	}
	for id, text := range byID {
		vocab.values[id] = text
	}

	if vocab.EndOfWordID() < 0 {
		return nil, malformed(lineNo, "vocabulary has no %s token", EndOfWord)
	}

	m := &Model{Vocab: vocab, Normalized: normalized}
	if sawMerges {
		for {
			line, ok = next()
			if !ok {
				break
			}
			if line == "" {
				continue
			}

			first, second, found := strings.Cut(line, " ")
			if !found {
				return nil, malformed(lineNo, "expected <first> <second>, got %q", line)
			}

			left, lok := vocab.ID(first)
			right, rok := vocab.ID(second)
			if !lok || !rok {
				return nil, malformed(lineNo, "merge %q references unknown token", line)
			}
			if !vocab.CanMerge(left, right) {
				return nil, malformed(lineNo, "merge %q collides with a sentinel", line)
			}

			merged, ok := vocab.ID(first + second)
			if !ok {
				return nil, malformed(lineNo, "merge %q produces unknown token %q", line, first+second)
			}

			m.Merges = append(m.Merges, Merge{Pair: Pair{Left: left, Right: right}, ID: merged})
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error while reading model: %w", err)
	}

	return m, nil
}
