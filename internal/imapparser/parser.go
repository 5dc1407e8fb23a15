package imapparser

import (
	"strconv"
	"strings"
)

// Pending is a parsed command line, possibly still waiting on a literal's
// bytes. ResolveLiteral must be called (with exactly Literal.N bytes) before
// Args is complete, if Literal is non-nil.
type Pending struct {
	Tag     string
	Verb    CommandVerb
	UIDMode bool
	Args    []Node
	Literal *LiteralMarker

	resolve func(Quoted)
}

// ResolveLiteral substitutes the bytes read for a pending literal and clears
// Literal. It must only be called once per Pending.
func (p *Pending) ResolveLiteral(data []byte) {
	if p.resolve != nil {
		p.resolve(Quoted(data))
	}
	p.Literal = nil
}

// Parse tokenizes one command line (without its trailing CRLF). The empty
// line is accepted and returns a nil Pending and nil error (spec.md §4.B:
// "The empty line is accepted and ignored").
func Parse(line string) (*Pending, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return nil, &ParseError{Reason: "missing command"}
	}
	tag := line[:sp]
	if tag == "" {
		return nil, &ParseError{Reason: "missing tag"}
	}
	rest := strings.TrimLeft(line[sp+1:], " ")

	sp2 := strings.IndexByte(rest, ' ')
	var verbTok, argsText string
	if sp2 < 0 {
		verbTok, argsText = rest, ""
	} else {
		verbTok, argsText = rest[:sp2], rest[sp2+1:]
	}
	if verbTok == "" {
		return nil, &ParseError{Reason: "missing command"}
	}
	verb := CommandVerb(strings.ToUpper(verbTok))

	uidMode := false
	if verb == VUID {
		argsText = strings.TrimLeft(argsText, " ")
		sp3 := strings.IndexByte(argsText, ' ')
		var subVerb string
		if sp3 < 0 {
			subVerb, argsText = argsText, ""
		} else {
			subVerb, argsText = argsText[:sp3], argsText[sp3+1:]
		}
		if subVerb == "" {
			return nil, &ParseError{Reason: "UID requires a subcommand"}
		}
		verb = CommandVerb(strings.ToUpper(subVerb))
		uidMode = true
	}

	lx := newLexer(argsText)
	nodes, err := lx.scanArgs()
	if err != nil {
		return nil, err
	}

	p := &Pending{Tag: tag, Verb: verb, UIDMode: uidMode, Args: nodes}
	if lit, resolve := extractLiteral(nodes); lit != nil {
		p.Literal = lit
		p.resolve = resolve
	}
	return p, nil
}

func extractLiteral(nodes []Node) (*LiteralMarker, func(Quoted)) {
	for i, n := range nodes {
		switch v := n.(type) {
		case LiteralMarker:
			m := v
			idx := i
			return &m, func(q Quoted) { nodes[idx] = q }
		case List:
			if lm, set := extractLiteral(v); lm != nil {
				return lm, set
			}
		}
	}
	return nil, nil
}

// --- shared argument helpers used by verb-specific parsers (store, handlers) ---

// AtomOrQuoted extracts a plain Go string from an Atom or Quoted node.
func AtomOrQuoted(n Node) (string, bool) {
	switch v := n.(type) {
	case Atom:
		return string(v), true
	case Quoted:
		return string(v), true
	}
	return "", false
}

// ParseSeqSet parses a sequence-set token, e.g. "1:3,5,7:*" or "*".
func ParseSeqSet(s string) (SeqSet, error) {
	if s == "" {
		return nil, &ParseError{Reason: "empty sequence set"}
	}
	var out SeqSet
	for _, item := range strings.Split(s, ",") {
		if item == "" {
			return nil, &ParseError{Reason: "empty sequence-set item"}
		}
		if colon := strings.IndexByte(item, ':'); colon >= 0 {
			loStr, hiStr := item[:colon], item[colon+1:]
			var r SeqRange
			if loStr == "*" {
				r.IsStarLo = true
			} else {
				n, err := strconv.ParseUint(loStr, 10, 32)
				if err != nil || n == 0 {
					return nil, &ParseError{Reason: "invalid sequence number"}
				}
				r.Lo = uint32(n)
			}
			if hiStr == "*" {
				r.IsStarHi = true
			} else {
				n, err := strconv.ParseUint(hiStr, 10, 32)
				if err != nil || n == 0 {
					return nil, &ParseError{Reason: "invalid sequence number"}
				}
				r.Hi = uint32(n)
			}
			out = append(out, r)
		} else if item == "*" {
			out = append(out, SeqRange{IsStarLo: true, IsStarHi: true})
		} else {
			n, err := strconv.ParseUint(item, 10, 32)
			if err != nil || n == 0 {
				return nil, &ParseError{Reason: "invalid sequence number"}
			}
			out = append(out, SeqRange{Lo: uint32(n), Hi: uint32(n)})
		}
	}
	return out, nil
}

// Compress builds a compact sequence-set string (e.g. "1:3,5,9") from a
// sorted, deduplicated list of numbers, for ESEARCH ALL responses.
func Compress(nums []uint32) string {
	if len(nums) == 0 {
		return ""
	}
	var b strings.Builder
	start, prev := nums[0], nums[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == prev {
			b.WriteString(strconv.FormatUint(uint64(start), 10))
		} else {
			b.WriteString(strconv.FormatUint(uint64(start), 10))
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(uint64(prev), 10))
		}
	}
	for _, n := range nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return b.String()
}
