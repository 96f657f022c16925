package tokenizer

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

// EncoderState implements a streaming encoder by buffering input bytes and flushing every complete
// word, i.e. everything up to and including the last whitespace in the buffer. Words never merge
// with each other, so the trailing partial word is the only thing that must be held back; this also
// keeps multi-byte characters split across chunks intact.
type EncoderState struct {
	enc *Encoder

	buf    []byte
	outBuf []int
}

// NewEncoderState returns a new instance of the encoder state.
func NewEncoderState(e *Encoder) *EncoderState {
	return &EncoderState{enc: e}
}

// Push consumes the next chunk of raw bytes and emits any finalized tokens. On error the state is
// reset and the buffered input is dropped.
func (st *EncoderState) Push(chunk []byte) ([]int, error) {
	st.outBuf = st.outBuf[:0]
	if len(chunk) > 0 {
		st.buf = append(st.buf, chunk...)
	}

	if err := st.emitCommitted(); err != nil {
		st.Reset()
		return nil, err
	}

	if len(st.outBuf) == 0 {
		return nil, nil
	}
	return append([]int(nil), st.outBuf...), nil
}

// Flush encodes whatever bytes remain in the internal buffer and resets the state for a new stream.
func (st *EncoderState) Flush() ([]int, error) {
	defer st.Reset()

	if len(st.buf) == 0 {
		return nil, nil
	}

	ids, err := st.enc.EncodeIDs(string(st.buf))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// Reset discards buffered input.
func (st *EncoderState) Reset() {
	st.buf = st.buf[:0]
	st.outBuf = st.outBuf[:0]
}

// Pending is the number of buffered bytes not yet emitted.
func (st *EncoderState) Pending() int {
	return len(st.buf)
}

func (st *EncoderState) emitCommitted() error {
	cut := bytes.LastIndexFunc(st.buf, unicode.IsSpace)
	if cut < 0 {
		return nil
	}
	_, size := utf8.DecodeRune(st.buf[cut:])
	cut += size

	ids, err := st.enc.EncodeIDs(string(st.buf[:cut]))
	if err != nil {
		return err
	}

	st.outBuf = append(st.outBuf, ids...)
	st.buf = append(st.buf[:0], st.buf[cut:]...)
	return nil
}
