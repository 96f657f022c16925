package tokenizer

import (
	"strings"
	"unicode/utf8"
)

const (
	// EndOfWord is appended after every word; merges never carry it across into the next word.
	EndOfWord = "</w>"
	// EndOfText marks the end of a document. It is reserved in every vocabulary but never produced
	// by character decomposition.
	EndOfText = "<|endoftext|>"
)

// Vocabulary is an append-only, bidirectional mapping between token text and dense ids.
// ids are assigned in creation order starting at 0 and are never reused.
type Vocabulary struct {
	values []string
	ids    map[string]int
}

// NewVocabulary returns a vocabulary seeded with the two sentinels, EndOfWord (0) and EndOfText (1).
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{ids: make(map[string]int)}
	v.Intern(EndOfWord)
	v.Intern(EndOfText)
	return v
}

// Intern returns the id of text, allocating the next sequential id if text is new.
func (v *Vocabulary) Intern(text string) int {
	if id, ok := v.ids[text]; ok {
		return id
	}

	id := len(v.values)
	v.values = append(v.values, text)
	v.ids[text] = id
	return id
}

// ID looks up the id of text.
func (v *Vocabulary) ID(text string) (int, bool) {
	id, ok := v.ids[text]
	return id, ok
}

// Text looks up the text of id.
func (v *Vocabulary) Text(id int) (string, bool) {
	if id < 0 || id >= len(v.values) {
		return "", false
	}
	return v.values[id], true
}

// Len is the vocabulary size; it is also the id the next Intern of unseen text will return.
func (v *Vocabulary) Len() int {
	return len(v.values)
}

// EndOfWordID returns the id of the EndOfWord sentinel, or -1 if absent.
func (v *Vocabulary) EndOfWordID() int {
	if id, ok := v.ids[EndOfWord]; ok {
		return id
	}
	return -1
}

// EndOfTextID returns the id of the EndOfText sentinel, or -1 if absent.
func (v *Vocabulary) EndOfTextID() int {
	if id, ok := v.ids[EndOfText]; ok {
		return id
	}
	return -1
}

// EndsWord reports whether the token closes a word, i.e. its text ends with EndOfWord.
func (v *Vocabulary) EndsWord(id int) bool {
	text, ok := v.Text(id)
	return ok && strings.HasSuffix(text, EndOfWord)
}

// CanMerge reports whether left and right may be concatenated into one token. The result must not
// spell a sentinel, and it may end with EndOfWord only when right already closes a word, so a
// token built from the characters of "</w>" is never mistaken for a word boundary.
func (v *Vocabulary) CanMerge(left, right int) bool {
	l, lok := v.Text(left)
	r, rok := v.Text(right)
	if !lok || !rok {
		return false
	}
	if len(l)+len(r) == len(EndOfText) && l+r == EndOfText {
		return false
	}
	return spellsEndOfWord(l, r) == strings.HasSuffix(r, EndOfWord)
}

// spellsEndOfWord reports whether l+r ends with EndOfWord without building the concatenation.
func spellsEndOfWord(l, r string) bool {
	if len(r) >= len(EndOfWord) {
		return strings.HasSuffix(r, EndOfWord)
	}
	n := len(EndOfWord) - len(r)
	return strings.HasSuffix(EndOfWord, r) && strings.HasSuffix(l, EndOfWord[:n])
}

// Values returns a copy of the id-ordered token texts.
func (v *Vocabulary) Values() []string {
	return append([]string(nil), v.values...)
}

// Clone returns an independent copy.
func (v *Vocabulary) Clone() *Vocabulary {
	c := &Vocabulary{
		values: append([]string(nil), v.values...),
		ids:    make(map[string]int, len(v.ids)),
	}
	for k, id := range v.ids {
		c.ids[k] = id
	}
	return c
}

// EachCharacter calls fn with every character of word, in order. A character is one UTF-8 rune;
// bytes that are not valid UTF-8 are passed through one at a time so no input is lost.
func EachCharacter(word string, fn func(ch string)) {
	for len(word) > 0 {
		_, size := utf8.DecodeRuneInString(word)
		fn(word[:size])
		word = word[size:]
	}
}
