package tokenizer

import (
	"fmt"
	"strings"
)

// Decode a given sequence of tokens back to text. Every end-of-word marker becomes a single space,
// the end-of-text sentinel is dropped and the trailing space of the last word is trimmed.
func (m *Model) Decode(tokens []int) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}

	var sb strings.Builder
	if err := m.DecodeTo(&sb, tokens); err != nil {
		return "", err
	}

	return strings.TrimSuffix(sb.String(), " "), nil
}

// DecodeTo appends the text of tokens to sb without trimming, for callers decoding a stream in pieces.
func (m *Model) DecodeTo(sb *strings.Builder, tokens []int) error {
	eot := m.Vocab.EndOfTextID()
	for _, id := range tokens {
		text, ok := m.Vocab.Text(id)
		if !ok {
			return fmt.Errorf("token id out of range while decoding: %d", id)
		}
		if id == eot {
			continue
		}

		if word, closed := strings.CutSuffix(text, EndOfWord); closed {
			sb.WriteString(word)
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(text)
	}
	return nil
}
