package relay

// history keeps the most recent messages in send order. A limit of zero
// keeps nothing.
type history struct {
	limit    int
	messages []Message
}

func newHistory(limit int) *history {
	if limit < 0 {
		limit = 0
	}
	return &history{limit: limit}
}

// append adds msg and evicts the oldest entries beyond the limit.
func (h *history) append(msg Message) {
	if h.limit == 0 {
		return
	}
	h.messages = append(h.messages, msg)
	if over := len(h.messages) - h.limit; over > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(h.messages, h.messages[over:])
		clear(h.messages[n:])
		h.messages = h.messages[:n]
	}
}

// snapshot returns a copy safe to hand to a transport.
func (h *history) snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *history) len() int {
	return len(h.messages)
}
