package command

import "strings"

// Reassembler turns an unbounded sequence of text fragments into complete lines.
// It holds the text received after the last newline; a zero Reassembler is
// ready to use. It is not safe for concurrent use.
type Reassembler struct {
	buf string
}

// Feed appends a fragment and returns every line it completes, in arrival
// order and without the trailing newline. The unterminated remainder is kept
// for the next call.
func (r *Reassembler) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	if !strings.Contains(fragment, "\n") {
		r.buf += fragment
		return nil
	}

	pieces := strings.Split(r.buf+fragment, "\n")
	r.buf = pieces[len(pieces)-1]
	return pieces[:len(pieces)-1]
}

// Pending returns the buffered partial line.
func (r *Reassembler) Pending() string {
	return r.buf
}

// Reset discards any partial line. Called when the channel closes.
func (r *Reassembler) Reset() {
	r.buf = ""
}
