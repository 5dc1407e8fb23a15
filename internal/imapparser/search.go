package imapparser

import "strings"

// SearchQuery is a fully parsed SEARCH command: the RETURN options
// (defaulting to ALL when absent) and the list of top-level keys, which are
// implicitly ANDed together (spec.md §4.C: "joining with AND").
type SearchQuery struct {
	Return []SearchReturnOpt
	// ReturnPresent is true iff the command spelled out RETURN (...)
	// explicitly, even RETURN (ALL): RFC 9051 mandates ESEARCH output
	// whenever RETURN is present, not only when a non-ALL option is given.
	ReturnPresent bool
	Keys          []SearchKey
}

type cursor struct {
	nodes []Node
	i     int
}

func (c *cursor) next() (Node, bool) {
	if c.i >= len(c.nodes) {
		return nil, false
	}
	n := c.nodes[c.i]
	c.i++
	return n, true
}

func (c *cursor) nextAtomStr() (string, error) {
	n, ok := c.next()
	if !ok {
		return "", &ParseError{Reason: "unexpected end of SEARCH key arguments"}
	}
	s, ok := AtomOrQuoted(n)
	if !ok {
		return "", &ParseError{Reason: "expected a string argument"}
	}
	return s, nil
}

// ParseSearch parses the argument nodes of a SEARCH/UID SEARCH command.
func ParseSearch(nodes []Node) (*SearchQuery, error) {
	c := &cursor{nodes: nodes}

	q := &SearchQuery{}

	// Optional RETURN (...) option list, which must come first.
	if len(nodes) >= 2 {
		if a, ok := nodes[0].(Atom); ok && strings.EqualFold(string(a), "RETURN") {
			if lst, ok := nodes[1].(List); ok {
				opts, err := parseReturnOpts(lst)
				if err != nil {
					return nil, err
				}
				q.Return = opts
				q.ReturnPresent = true
				c.i = 2
			}
		}
	}
	if len(q.Return) == 0 {
		q.Return = []SearchReturnOpt{RetAll}
	}

	keys, err := parseKeySequence(c)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &ParseError{Reason: "SEARCH requires at least one key"}
	}
	q.Keys = keys
	return q, nil
}

func parseReturnOpts(lst List) ([]SearchReturnOpt, error) {
	if len(lst) == 0 {
		return []SearchReturnOpt{RetAll}, nil
	}
	var out []SearchReturnOpt
	for _, n := range lst {
		a, ok := n.(Atom)
		if !ok {
			return nil, &ParseError{Reason: "malformed RETURN option"}
		}
		switch strings.ToUpper(string(a)) {
		case "MIN":
			out = append(out, RetMin)
		case "MAX":
			out = append(out, RetMax)
		case "ALL":
			out = append(out, RetAll)
		case "COUNT":
			out = append(out, RetCount)
		case "SAVE":
			out = append(out, RetSave)
		default:
			return nil, &ParseError{Reason: "unknown RETURN option " + string(a)}
		}
	}
	return out, nil
}

// parseKeySequence consumes key after key until the cursor is exhausted,
// used both for the top-level key list and for a parenthesized group.
func parseKeySequence(c *cursor) ([]SearchKey, error) {
	var keys []SearchKey
	for c.i < len(c.nodes) {
		k, err := parseOneKey(c)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, nil
}

func parseOneKey(c *cursor) (*SearchKey, error) {
	n, ok := c.next()
	if !ok {
		return nil, &ParseError{Reason: "expected a SEARCH key"}
	}

	switch v := n.(type) {
	case List:
		sub := &cursor{nodes: v}
		keys, err := parseKeySequence(sub)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, &ParseError{Reason: "empty SEARCH key group"}
		}
		return foldAnd(keys), nil
	case Quoted:
		// A bare quoted string is not valid on its own; sequence sets are
		// always atoms.
		return nil, &ParseError{Reason: "unexpected string where a SEARCH key was expected"}
	case Atom:
		return parseAtomKey(c, string(v))
	}
	return nil, &ParseError{Reason: "malformed SEARCH key"}
}

func foldAnd(keys []SearchKey) *SearchKey {
	k := keys[0]
	for _, next := range keys[1:] {
		n := next
		k = SearchKey{Kind: SKAnd, Left: &k, Right: &n}
	}
	return &k
}

func parseAtomKey(c *cursor, word string) (*SearchKey, error) {
	upper := strings.ToUpper(word)
	switch upper {
	case "ALL":
		return &SearchKey{Kind: SKAll}, nil
	case "ANSWERED":
		return &SearchKey{Kind: SKAnswered}, nil
	case "UNANSWERED":
		return &SearchKey{Kind: SKUnanswered}, nil
	case "DELETED":
		return &SearchKey{Kind: SKDeleted}, nil
	case "UNDELETED":
		return &SearchKey{Kind: SKUndeleted}, nil
	case "DRAFT":
		return &SearchKey{Kind: SKDraft}, nil
	case "UNDRAFT":
		return &SearchKey{Kind: SKUndraft}, nil
	case "FLAGGED":
		return &SearchKey{Kind: SKFlagged}, nil
	case "UNFLAGGED":
		return &SearchKey{Kind: SKUnflagged}, nil
	case "SEEN":
		return &SearchKey{Kind: SKSeen}, nil
	case "UNSEEN":
		return &SearchKey{Kind: SKUnseen}, nil
	case "NEW":
		return &SearchKey{Kind: SKNew}, nil
	case "OLD":
		return &SearchKey{Kind: SKOld}, nil
	case "RECENT":
		return &SearchKey{Kind: SKRecent}, nil
	case "KEYWORD":
		s, err := c.nextAtomStr()
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKKeyword, Str: s}, nil
	case "UNKEYWORD":
		s, err := c.nextAtomStr()
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKUnkeyword, Str: s}, nil
	case "BCC":
		return stringKey(c, SKBcc)
	case "CC":
		return stringKey(c, SKCc)
	case "FROM":
		return stringKey(c, SKFrom)
	case "TO":
		return stringKey(c, SKTo)
	case "SUBJECT":
		return stringKey(c, SKSubject)
	case "BODY":
		return stringKey(c, SKBody)
	case "TEXT":
		return stringKey(c, SKText)
	case "HEADER":
		field, err := c.nextAtomStr()
		if err != nil {
			return nil, err
		}
		val, err := c.nextAtomStr()
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKHeader, Field: field, Str: val}, nil
	case "BEFORE":
		return dateKey(c, SKBefore)
	case "ON":
		return dateKey(c, SKOn)
	case "SINCE":
		return dateKey(c, SKSince)
	case "SENTBEFORE":
		return dateKey(c, SKSentBefore)
	case "SENTON":
		return dateKey(c, SKSentOn)
	case "SENTSINCE":
		return dateKey(c, SKSentSince)
	case "LARGER":
		return sizeKey(c, SKLarger)
	case "SMALLER":
		return sizeKey(c, SKSmaller)
	case "NOT":
		inner, err := parseOneKey(c)
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKNot, Left: inner}, nil
	case "OR":
		left, err := parseOneKey(c)
		if err != nil {
			return nil, err
		}
		right, err := parseOneKey(c)
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKOr, Left: left, Right: right}, nil
	case "UID":
		s, err := c.nextAtomStr()
		if err != nil {
			return nil, err
		}
		set, err := ParseSeqSet(s)
		if err != nil {
			return nil, err
		}
		return &SearchKey{Kind: SKUID, Set: set}, nil
	}

	// A bare sequence set is itself a key.
	if set, err := ParseSeqSet(word); err == nil {
		return &SearchKey{Kind: SKSeqSet, Set: set}, nil
	}
	return nil, &ParseError{Reason: "unknown SEARCH key " + word}
}

func stringKey(c *cursor, kind SearchKeyKind) (*SearchKey, error) {
	s, err := c.nextAtomStr()
	if err != nil {
		return nil, err
	}
	return &SearchKey{Kind: kind, Str: s}, nil
}

func dateKey(c *cursor, kind SearchKeyKind) (*SearchKey, error) {
	s, err := c.nextAtomStr()
	if err != nil {
		return nil, err
	}
	days, err := ParseSearchDate(s)
	if err != nil {
		return nil, err
	}
	return &SearchKey{Kind: kind, DateDays: days}, nil
}

func sizeKey(c *cursor, kind SearchKeyKind) (*SearchKey, error) {
	s, err := c.nextAtomStr()
	if err != nil {
		return nil, err
	}
	var n int64
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return nil, &ParseError{Reason: "expected a number"}
		}
		n = n*10 + int64(ch-'0')
	}
	return &SearchKey{Kind: kind, Size: n}, nil
}
