package bpetok

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/bpetok/internal/tokenizer"
	"github.com/bpetok/internal/trainer"
)

// Encoder interface
type Encoder interface {
	/*
		Feed consumes the next chunk of raw bytes from the input stream. It may emit zero or more
		completed token IDs: every word that is closed by whitespace inside the buffered input.
		The returned slice must be treated as read-only.
		On error the buffered input is dropped and the encoder starts a new stream.
	*/
	Feed(chunk []byte) ([]int, error)

	/*
		Flush tells the encoder that the stream is complete. It returns the token IDs of the last,
		unterminated word. After flush, the encoder is reset to a clean state and can be reused for a new stream.
	*/
	Flush() ([]int, error)
}

// Decoder interface, no need for flush because the only thing held back is the space after the last word
type Decoder interface {
	/*
		Feed consumes token IDs and returns zero or more decoded bytes. The concatenated output of a
		sequence of Feed calls equals Tokenizer.Decode over the concatenated input.
	*/
	Feed(tokens []int) ([]byte, error)
}

type (
	OOVPolicy     = tokenizer.OOVPolicy
	EncodeOptions = tokenizer.EncoderOptions
	Result        = trainer.Result
	State         = trainer.State
)

const (
	OOVExtend = tokenizer.OOVExtend
	OOVReject = tokenizer.OOVReject

	StateDone      = trainer.StateDone
	StateExhausted = trainer.StateExhausted
)

var (
	ErrMalformedModel  = tokenizer.ErrMalformedModel
	ErrOutOfVocabulary = tokenizer.ErrOutOfVocabulary
)

// TrainOptions configures Train.
type TrainOptions struct {
	VocabSize       int
	MaxMerges       int
	AttachEndOfWord bool
	Normalize       bool
}

// Tokenizer model. Encoding with OOVExtend grows the vocabulary, so a Tokenizer and the encoders it
// creates must not be used from several goroutines at once.
type Tokenizer struct {
	model *tokenizer.Model

	// EncodeOptions applies to every encoder created after it is set.
	EncodeOptions EncodeOptions
}

// Train learns a tokenizer from the corpus in r. The returned tokenizer normalizes its input iff
// training did, and so does any tokenizer loaded from its saved model.
func Train(ctx context.Context, r io.Reader, opts TrainOptions) (*Tokenizer, Result, error) {
	s := trainer.NewSession(trainer.Options{
		VocabSize:       opts.VocabSize,
		MaxMerges:       opts.MaxMerges,
		AttachEndOfWord: opts.AttachEndOfWord,
		Normalize:       opts.Normalize,
	})

	res, err := s.Train(ctx, r)
	if err != nil {
		return nil, res, err
	}

	return newTokenizer(s.Model()), res, nil
}

// TrainFile is Train over the file at path.
func TrainFile(ctx context.Context, path string, opts TrainOptions) (*Tokenizer, Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Result{}, err
	}
	defer f.Close()

	return Train(ctx, f, opts)
}

// LoadTokenizer reads a model in the format written by Save.
func LoadTokenizer(r io.Reader) (*Tokenizer, error) {
	m, err := tokenizer.ReadModel(r)
	if err != nil {
		return nil, err
	}
	return newTokenizer(m), nil
}

// LoadTokenizerFromFile reads the model saved at path.
func LoadTokenizerFromFile(path string) (*Tokenizer, error) {
	m, err := tokenizer.LoadModelFile(path)
	if err != nil {
		return nil, err
	}
	return newTokenizer(m), nil
}

func newTokenizer(m *tokenizer.Model) *Tokenizer {
	return &Tokenizer{model: m, EncodeOptions: EncodeOptions{Normalize: m.Normalized}}
}

// Normalized reports whether the model was trained on NFC-normalized text.
func (t *Tokenizer) Normalized() bool {
	return t.model.Normalized
}

// Save writes the model.
func (t *Tokenizer) Save(w io.Writer) error {
	return t.model.Save(w)
}

// SaveFile writes the model to path.
func (t *Tokenizer) SaveFile(path string) error {
	return t.model.SaveFile(path)
}

// VocabSize is the current vocabulary size.
func (t *Tokenizer) VocabSize() int {
	return t.model.Vocab.Len()
}

// Vocabulary returns the token texts in id order.
func (t *Tokenizer) Vocabulary() []string {
	return t.model.Vocab.Values()
}

// Merges returns the learned merges as token texts, in rank order.
func (t *Tokenizer) Merges() [][2]string {
	out := make([][2]string, 0, len(t.model.Merges))
	for _, mg := range t.model.Merges {
		left, _ := t.model.Vocab.Text(mg.Left)
		right, _ := t.model.Vocab.Text(mg.Right)
		out = append(out, [2]string{left, right})
	}
	return out
}

// Encode returns the token pieces of text.
func (t *Tokenizer) Encode(text string) ([]string, error) {
	return tokenizer.NewEncoder(t.model, t.EncodeOptions).Encode(text)
}

// EncodeIDs returns the token ids of text.
func (t *Tokenizer) EncodeIDs(text string) ([]int, error) {
	return tokenizer.NewEncoder(t.model, t.EncodeOptions).EncodeIDs(text)
}

// Decode turns token ids back into text, one space per end-of-word marker.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	return t.model.Decode(ids)
}

// NewEncoder returns a streaming encoder.
func (t *Tokenizer) NewEncoder() Encoder {
	return &streamEncoder{state: tokenizer.NewEncoderState(tokenizer.NewEncoder(t.model, t.EncodeOptions))}
}

// NewDecoder returns a streaming decoder.
func (t *Tokenizer) NewDecoder() Decoder {
	return &streamDecoder{model: t.model}
}

type streamEncoder struct {
	state *tokenizer.EncoderState
}

func (e *streamEncoder) Feed(chunk []byte) ([]int, error) {
	return e.state.Push(chunk)
}

func (e *streamEncoder) Flush() ([]int, error) {
	return e.state.Flush()
}

// streamDecoder writes a word's space only once another token follows it, which keeps the
// one-shot Decode trimming.
type streamDecoder struct {
	model        *tokenizer.Model
	pendingSpace bool
	sb           strings.Builder
}

func (d *streamDecoder) Feed(tokens []int) ([]byte, error) {
	d.sb.Reset()
	eot := d.model.Vocab.EndOfTextID()

	for _, id := range tokens {
		if id == eot {
			continue
		}

		var piece strings.Builder
		if err := d.model.DecodeTo(&piece, []int{id}); err != nil {
			return nil, err
		}

		if d.pendingSpace {
			d.sb.WriteByte(' ')
			d.pendingSpace = false
		}

		text, closed := strings.CutSuffix(piece.String(), " ")
		d.sb.WriteString(text)
		d.pendingSpace = closed
	}

	return []byte(d.sb.String()), nil
}
