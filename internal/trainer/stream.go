package trainer

import (
	"bufio"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bpetok/internal/tokenizer"
)

// Record is one token occurrence. Records live in a fixed array and are addressed by position;
// a merged-away record is marked inactive but its slot is never reused, so positions stay valid
// for the whole session.
type Record struct {
	Tok    int
	Prev   int // -1 = none
	Next   int // -1 = none
	Active bool
}

// Stream is the whole corpus as a single doubly linked chain of records inside one array.
// Word boundaries are EndOfWord records, not separate lists.
type Stream struct {
	records []Record
}

// buildStream reads whitespace-delimited words from r, interning one token per character plus an
// EndOfWord token after every word. vocab is only touched by this call, so a read error leaves the
// caller's state alone as long as it passes a fresh vocabulary. Input is consumed one character at
// a time, so words of any length are accepted.
func buildStream(r io.Reader, vocab *tokenizer.Vocabulary, normalize bool) (*Stream, error) {
	if normalize {
		r = norm.NFC.Reader(r)
	}

	eow := vocab.EndOfWordID()

	sc := bufio.NewScanner(r)
	sc.Split(scanCharacters)

	var records []Record
	inWord := false
	for sc.Scan() {
		ch := sc.Bytes()
		if c, _ := utf8.DecodeRune(ch); unicode.IsSpace(c) {
			if inWord {
				records = append(records, Record{Tok: eow, Prev: -1, Next: -1, Active: true})
				inWord = false
			}
			continue
		}
		records = append(records, Record{Tok: vocab.Intern(string(ch)), Prev: -1, Next: -1, Active: true})
		inWord = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if inWord {
		records = append(records, Record{Tok: eow, Prev: -1, Next: -1, Active: true})
	}

	// set prev and next ptrs
	for i := range records {
		if i > 0 {
			records[i].Prev = i - 1
		}
		if i+1 < len(records) {
			records[i].Next = i + 1
		}
	}

	return &Stream{records: records}, nil
}

// scanCharacters is a bufio.SplitFunc yielding one character per token, split the same way as
// tokenizer.EachCharacter: a UTF-8 rune, or a single byte where the input is not valid UTF-8.
func scanCharacters(data []byte, atEOF bool) (int, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if !atEOF && !utf8.FullRune(data) {
		return 0, nil, nil
	}
	_, n := utf8.DecodeRune(data)
	return n, data[:n], nil
}

// Len is the number of records, active or not.
func (s *Stream) Len() int {
	return len(s.records)
}

// At returns the record at position i.
func (s *Stream) At(i int) Record {
	return s.records[i]
}

// adjacent returns the position of i's live successor if i starts a live adjacency.
func (s *Stream) adjacent(i int) (int, bool) {
	rec := &s.records[i]
	if !rec.Active || rec.Next == -1 || !s.records[rec.Next].Active {
		return -1, false
	}
	return rec.Next, true
}

// livePrev returns the position of i's live predecessor, or -1.
func (s *Stream) livePrev(i int) int {
	if p := s.records[i].Prev; p != -1 && s.records[p].Active {
		return p
	}
	return -1
}

// liveNext returns the position of i's live successor, or -1.
func (s *Stream) liveNext(i int) int {
	if j, ok := s.adjacent(i); ok {
		return j
	}
	return -1
}

// splice rewrites the adjacency starting at i into the single token m: i takes the new id, its
// successor is unlinked and deactivated. It returns the deactivated position.
func (s *Stream) splice(i, m int) int {
	rec := &s.records[i]
	j := rec.Next
	right := &s.records[j]

	rec.Tok = m
	rec.Next = right.Next
	if right.Next != -1 {
		s.records[right.Next].Prev = i
	}

	right.Active = false
	right.Prev, right.Next = -1, -1
	return j
}

// Tokens walks the chain from the head and returns the live token ids in order.
func (s *Stream) Tokens() []int {
	if len(s.records) == 0 {
		return nil
	}

	// position 0 never dies; merges always keep the left slot
	var out []int
	for i := 0; i != -1; i = s.records[i].Next {
		out = append(out, s.records[i].Tok)
	}
	return out
}
