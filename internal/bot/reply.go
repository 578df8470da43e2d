package bot

import "strings"

// Reply kinds. The transport decides final phrasing and rendering for
// Unrecognized; everything else is delivered as-is.
const (
	ReplyMessage      = "message"
	ReplyMenu         = "menu"
	ReplyCheckout     = "checkout"
	ReplyUnrecognized = "unrecognized"
)

// Option is one selectable control attached to a menu reply. Data is the
// callback payload the transport should send back when it is picked.
type Option struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is one transport-neutral outbound message.
type Reply struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Options []Option `json:"options,omitempty"`
	URL     string   `json:"url,omitempty"`
	Token   string   `json:"token,omitempty"`
}

func message(text string) Reply {
	return Reply{Kind: ReplyMessage, Text: text}
}

func menu(text string, options []Option) Reply {
	return Reply{Kind: ReplyMenu, Text: text, Options: options}
}

// SplitMessage breaks text into chunks of at most limit bytes, splitting on
// line boundaries and preserving order. A single line longer than the limit
// is split at the limit — that is the only case where a line is ever cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	started := false // current holds at least one line (possibly empty)

	flush := func() {
		if started {
			chunks = append(chunks, current.String())
			current.Reset()
			started = false
		}
	}

	for _, line := range strings.Split(text, "\n") {
		// An oversized line cannot fit any chunk whole; hard-split it.
		for len(line) > limit {
			flush()
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}

		need := len(line)
		if started {
			need++ // the newline separator
		}
		if current.Len()+need > limit {
			flush()
		}
		if started {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		started = true
	}
	flush()

	return chunks
}

// chunked wraps a long text into ordered message replies.
func chunked(text string, limit int) []Reply {
	parts := SplitMessage(text, limit)
	replies := make([]Reply, 0, len(parts))
	for _, p := range parts {
		replies = append(replies, message(p))
	}
	return replies
}
