package tokenizer

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// scanReplay is the literal definition of encoding: every merge in rank order, each one a single
// left-to-right pass over non-overlapping matches.
func scanReplay(m *Model, word []int) []int {
	tokens := append([]int(nil), word...)
	for _, mg := range m.Merges {
		out := tokens[:0:0]
		for i := 0; i < len(tokens); i++ {
			if i+1 < len(tokens) && tokens[i] == mg.Left && tokens[i+1] == mg.Right {
				out = append(out, mg.ID)
				i++
				continue
			}
			out = append(out, tokens[i])
		}
		tokens = out
	}
	return tokens
}

func scanEncode(t *testing.T, m *Model, text string) []int {
	t.Helper()
	var out []int
	for _, w := range strings.Fields(text) {
		var word []int
		EachCharacter(w, func(ch string) {
			id, ok := m.Vocab.ID(ch)
			if !ok {
				t.Fatalf("scanEncode: unknown character %q", ch)
			}
			word = append(word, id)
		})
		out = append(out, scanReplay(m, append(word, m.Vocab.EndOfWordID()))...)
	}
	return out
}

func TestEncodePieces(t *testing.T) {
	m := buildModel(t, []string{"l", "o", "w", "e", "r", "s", "t"}, [][2]string{
		{"l", "o"},
		{"lo", "w"},
		{"e", "r"},
		{"low", EndOfWord},
		{"s", "t"},
	})
	enc := NewEncoder(m, EncoderOptions{})

	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"low", []string{"low</w>"}},
		{"lower", []string{"low", "er", EndOfWord}},
		{"lowest slow", []string{"low", "e", "st", EndOfWord, "s", "low</w>"}},
		{"ol", []string{"o", "l", EndOfWord}},
	}

	for _, tc := range cases {
		got, err := enc.Encode(tc.in)
		if err != nil {
			t.Fatalf("Encode(%q): %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("Encode(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestEncodeOverlappingRunIsLeftmostFirst(t *testing.T) {
	m := buildModel(t, []string{"a"}, [][2]string{{"a", "a"}})
	enc := NewEncoder(m, EncoderOptions{})

	got, err := enc.Encode("aaa aaaa aaaaa")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"aa", "a", EndOfWord, "aa", "aa", EndOfWord, "aa", "aa", "a", EndOfWord}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRankOrderNotGreedyLength(t *testing.T) {
	// (b,c) outranks (a,b), so "abc" must not become ab+c
	m := buildModel(t, []string{"a", "b", "c"}, [][2]string{{"b", "c"}, {"a", "b"}, {"ab", "c"}})
	enc := NewEncoder(m, EncoderOptions{})

	got, err := enc.Encode("abc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "bc", EndOfWord}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeSkippedRankIsNotRevisited(t *testing.T) {
	// (ab,c) ranks before (a,b), so the ab+c adjacency that forms at rank 1 must stay unmerged
	m := buildModel(t, []string{"a", "b", "c", "ab"}, [][2]string{{"ab", "c"}, {"a", "b"}})
	enc := NewEncoder(m, EncoderOptions{})

	got, err := enc.Encode("abc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ab", "c", EndOfWord}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDuplicatePairLaterRank(t *testing.T) {
	// "abc" is produced by two different merges, so (abc, d) is learned twice. In "abcd" the abc
	// token only appears at rank 4, after the first (abc, d) rank has passed.
	m := buildModel(t, []string{"a", "b", "c", "d"}, [][2]string{
		{"b", "c"},
		{"a", "b"},
		{"ab", "c"},
		{"abc", "d"},
		{"a", "bc"},
		{"abc", "d"},
	})
	if m.Merges[3] != m.Merges[5] {
		t.Fatalf("test model lost its duplicate pair")
	}
	enc := NewEncoder(m, EncoderOptions{})

	got, err := enc.Encode("abcd")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"abcd", EndOfWord}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	for _, word := range []string{"abcd", "abbcd", "aabcdd", "abcdabcd"} {
		ids, err := enc.EncodeIDs(word)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(scanEncode(t, m, word), ids); diff != "" {
			t.Fatalf("%q mismatch (-scan +heap):\n%s", word, diff)
		}
	}
}

func TestEncodeUnknownCharacter(t *testing.T) {
	newModel := func() *Model { return buildModel(t, []string{"h", "i"}, [][2]string{{"h", "i"}}) }

	t.Run("extend", func(t *testing.T) {
		m := newModel()
		size := m.Vocab.Len()
		enc := NewEncoder(m, EncoderOptions{OOV: OOVExtend})

		got, err := enc.Encode("hi h\u00e9")
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"hi", EndOfWord, "h", "\u00e9", EndOfWord}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
		if m.Vocab.Len() != size+1 {
			t.Fatalf("vocab size %d, want %d", m.Vocab.Len(), size+1)
		}
	})

	t.Run("reject", func(t *testing.T) {
		m := newModel()
		size := m.Vocab.Len()
		enc := NewEncoder(m, EncoderOptions{OOV: OOVReject})

		got, err := enc.EncodeIDs("hi h\u00e9")
		if !errors.Is(err, ErrOutOfVocabulary) {
			t.Fatalf("expected out of vocabulary, got %v", err)
		}
		var oov *OutOfVocabularyError
		if !errors.As(err, &oov) || oov.Text != "\u00e9" {
			t.Fatalf("unexpected error %#v", err)
		}
		if got != nil || m.Vocab.Len() != size {
			t.Fatalf("reject emitted %v and grew the vocab to %d", got, m.Vocab.Len())
		}
	})
}

func TestEncodeNormalize(t *testing.T) {
	m := buildModel(t, []string{"\u00e9", "t"}, [][2]string{{"\u00e9", "t"}})

	plain := NewEncoder(m, EncoderOptions{OOV: OOVReject})
	if _, err := plain.EncodeIDs("e\u0301t"); !errors.Is(err, ErrOutOfVocabulary) {
		t.Fatalf("decomposed input without normalization: got %v", err)
	}

	nfc := NewEncoder(m, EncoderOptions{OOV: OOVReject, Normalize: true})
	got, err := nfc.Encode("e\u0301t")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"\u00e9t", EndOfWord}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOOVPolicy(t *testing.T) {
	for in, want := range map[string]OOVPolicy{"": OOVExtend, "extend": OOVExtend, " Reject ": OOVReject} {
		got, err := ParseOOVPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseOOVPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOOVPolicy("ignore"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

// randomModel learns random merges over alphabet the way a trainer could: operands are existing
// tokens, the left one never ends a word, and pairs may repeat.
func randomModel(t testing.TB, r *rand.Rand, alphabet string, merges int) *Model {
	t.Helper()

	v := NewVocabulary()
	for _, ch := range alphabet {
		v.Intern(string(ch))
	}
	m := &Model{Vocab: v}

	for len(m.Merges) < merges {
		var left, right int
		if len(m.Merges) > 0 && r.Intn(8) == 0 {
			prev := m.Merges[r.Intn(len(m.Merges))]
			left, right = prev.Left, prev.Right
		} else {
			left = 2 + r.Intn(v.Len()-2)
			right = r.Intn(v.Len())
			if right == v.EndOfTextID() || v.EndsWord(left) {
				continue
			}
		}
		lt, _ := v.Text(left)
		rt, _ := v.Text(right)
		m.Merges = append(m.Merges, Merge{Pair: Pair{Left: left, Right: right}, ID: v.Intern(lt + rt)})
	}
	return m
}

func randomText(r *rand.Rand, alphabet string, words, maxLen int) string {
	var sb strings.Builder
	for w := 0; w < words; w++ {
		n := 1 + r.Intn(maxLen)
		for i := 0; i < n; i++ {
			sb.WriteByte(alphabet[r.Intn(len(alphabet))])
		}
		sb.WriteByte(" \n\t"[r.Intn(3)])
	}
	return sb.String()
}

func TestEncodeMatchesScanReplay(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		alphabet := "abcd"[:1+r.Intn(4)]
		m := randomModel(t, r, alphabet, r.Intn(40))
		enc := NewEncoder(m, EncoderOptions{OOV: OOVReject})

		for k := 0; k < 5; k++ {
			text := randomText(r, alphabet, 1+r.Intn(6), 12)
			got, err := enc.EncodeIDs(text)
			if err != nil {
				t.Fatalf("round %d: EncodeIDs(%q): %v", round, text, err)
			}
			if diff := cmp.Diff(scanEncode(t, m, text), got); diff != "" {
				t.Fatalf("round %d: %q mismatch (-scan +heap):\n%s", round, text, diff)
			}
		}
	}
}

func TestPairLookupLargeIDs(t *testing.T) {
	merges := []Merge{
		{Pair: Pair{Left: 3, Right: 4}, ID: 500},
		{Pair: Pair{Left: 300, Right: 2}, ID: 501},
		{Pair: Pair{Left: 3, Right: 4}, ID: 500},
	}
	pl := NewPairLookup(merges, 600)

	if rank, id, ok := pl.Rank(3, 4); !ok || rank != 0 || id != 500 {
		t.Fatalf("Rank(3,4) = %d, %d, %v", rank, id, ok)
	}
	if rank, id, ok := pl.Rank(300, 2); !ok || rank != 1 || id != 501 {
		t.Fatalf("Rank(300,2) = %d, %d, %v", rank, id, ok)
	}
	if rank, _, ok := pl.RankFrom(3, 4, 1); !ok || rank != 2 {
		t.Fatalf("RankFrom(3,4,1) = %d, %v", rank, ok)
	}
	if _, _, ok := pl.RankFrom(3, 4, 3); ok {
		t.Fatalf("RankFrom past the last rank should fail")
	}
	if _, _, ok := pl.Rank(4, 3); ok {
		t.Fatalf("Rank(4,3) should be absent")
	}
}

func BenchmarkEncode(b *testing.B) {
	r := rand.New(rand.NewSource(11))
	m := randomModel(b, r, "abcdefgh", 400)
	enc := NewEncoder(m, EncoderOptions{OOV: OOVReject})
	text := randomText(r, "abcdefgh", 2000, 12)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.EncodeIDs(text); err != nil {
			b.Fatal(err)
		}
	}
}
