package bpetok

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const corpus = `low lower lowest newer wider
low low lower newest widest
`

func trainTest(t *testing.T, opts TrainOptions) *Tokenizer {
	t.Helper()
	tok, res, err := Train(context.Background(), strings.NewReader(corpus), opts)
	require.NoError(t, err)
	require.True(t, res.State == StateDone || res.State == StateExhausted)
	return tok
}

func TestTrainEncodeDecode(t *testing.T) {
	tok := trainTest(t, TrainOptions{VocabSize: 40, AttachEndOfWord: true})

	pieces, err := tok.Encode("lowest low")
	require.NoError(t, err)
	require.NotEmpty(t, pieces)
	require.Equal(t, "lowest</w>low</w>", strings.Join(pieces, ""))

	ids, err := tok.EncodeIDs("lowest low")
	require.NoError(t, err)
	require.Len(t, ids, len(pieces))

	text, err := tok.Decode(ids)
	require.NoError(t, err)
	require.Equal(t, "lowest low", text)
}

func TestSaveLoad(t *testing.T) {
	tok := trainTest(t, TrainOptions{VocabSize: 30})

	var buf bytes.Buffer
	require.NoError(t, tok.Save(&buf))

	loaded, err := LoadTokenizer(&buf)
	require.NoError(t, err)
	require.Equal(t, tok.Vocabulary(), loaded.Vocabulary())
	require.Equal(t, tok.Merges(), loaded.Merges())

	path := filepath.Join(t.TempDir(), "bpe_model.txt")
	require.NoError(t, tok.SaveFile(path))
	fromFile, err := LoadTokenizerFromFile(path)
	require.NoError(t, err)
	require.Equal(t, tok.VocabSize(), fromFile.VocabSize())

	_, err = LoadTokenizer(strings.NewReader("nonsense"))
	require.ErrorIs(t, err, ErrMalformedModel)
}

func TestNormalizationSurvivesSave(t *testing.T) {
	composed, decomposed := "caf\u00e9 caf\u00e9 caf\u00e9", "cafe\u0301"

	tok, _, err := Train(context.Background(), strings.NewReader(composed), TrainOptions{VocabSize: 20, Normalize: true})
	require.NoError(t, err)
	require.True(t, tok.Normalized())

	var buf bytes.Buffer
	require.NoError(t, tok.Save(&buf))
	loaded, err := LoadTokenizer(&buf)
	require.NoError(t, err)
	require.True(t, loaded.Normalized())
	require.True(t, loaded.EncodeOptions.Normalize)

	want, err := tok.EncodeIDs("caf\u00e9")
	require.NoError(t, err)
	got, err := loaded.EncodeIDs(decomposed)
	require.NoError(t, err)
	require.Equal(t, want, got)

	plain := trainTest(t, TrainOptions{VocabSize: 30})
	require.False(t, plain.Normalized())
	require.False(t, plain.EncodeOptions.Normalize)
}

func TestTrainFileMissing(t *testing.T) {
	_, _, err := TrainFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), TrainOptions{VocabSize: 10})
	require.Error(t, err)
}

func TestStreamingEncoderDecoder(t *testing.T) {
	tok := trainTest(t, TrainOptions{VocabSize: 40})
	input := "the lowest newer widest low"

	want, err := tok.EncodeIDs(input)
	require.NoError(t, err)

	enc := tok.NewEncoder()
	var got []int
	for i := 0; i < len(input); i += 5 {
		out, err := enc.Feed([]byte(input[i:min(i+5, len(input))]))
		require.NoError(t, err)
		got = append(got, out...)
	}
	rest, err := enc.Flush()
	require.NoError(t, err)
	got = append(got, rest...)
	require.Equal(t, want, got)

	dec := tok.NewDecoder()
	var text []byte
	for i := 0; i < len(got); i += 3 {
		out, err := dec.Feed(got[i:min(i+3, len(got))])
		require.NoError(t, err)
		text = append(text, out...)
	}
	require.Equal(t, input, string(text))

	_, err = dec.Feed([]int{1 << 20})
	require.Error(t, err)
}

func TestRejectPolicy(t *testing.T) {
	tok := trainTest(t, TrainOptions{VocabSize: 20})
	tok.EncodeOptions.OOV = OOVReject

	_, err := tok.Encode("low zzz")
	require.ErrorIs(t, err, ErrOutOfVocabulary)

	enc := tok.NewEncoder()
	_, err = enc.Feed([]byte("qq "))
	require.ErrorIs(t, err, ErrOutOfVocabulary)
}
