package imapparser

import "strings"

// ParseFetchItems parses the FETCH data-item argument: either a single
// macro atom (ALL/FAST/FULL), a single atom, or a parenthesized list of
// items, expanding macros per spec.md §4.B.
func ParseFetchItems(n Node) ([]FetchItem, error) {
	switch v := n.(type) {
	case List:
		var out []FetchItem
		for _, item := range v {
			items, err := parseOneFetchItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	default:
		return parseOneFetchItem(n)
	}
}

func parseOneFetchItem(n Node) ([]FetchItem, error) {
	a, ok := n.(Atom)
	if !ok {
		return nil, &ParseError{Reason: "malformed FETCH data item"}
	}
	word := string(a)
	upper := strings.ToUpper(word)

	switch upper {
	case "ALL":
		return []FetchItem{{Kind: FiFlags}, {Kind: FiInternalDate}, {Kind: FiRFC822Size}, {Kind: FiEnvelope}}, nil
	case "FAST":
		return []FetchItem{{Kind: FiFlags}, {Kind: FiInternalDate}, {Kind: FiRFC822Size}}, nil
	case "FULL":
		return []FetchItem{{Kind: FiFlags}, {Kind: FiInternalDate}, {Kind: FiRFC822Size}, {Kind: FiEnvelope}, {Kind: FiBodyNoArgs}}, nil
	case "UID":
		return []FetchItem{{Kind: FiUID}}, nil
	case "FLAGS":
		return []FetchItem{{Kind: FiFlags}}, nil
	case "INTERNALDATE":
		return []FetchItem{{Kind: FiInternalDate}}, nil
	case "RFC822.SIZE":
		return []FetchItem{{Kind: FiRFC822Size}}, nil
	case "ENVELOPE":
		return []FetchItem{{Kind: FiEnvelope}}, nil
	case "BODYSTRUCTURE":
		return []FetchItem{{Kind: FiBodyStructure}}, nil
	case "BODY":
		return []FetchItem{{Kind: FiBodyNoArgs}}, nil
	case "RFC822":
		return []FetchItem{{Kind: FiBodySection}}, nil
	case "RFC822.HEADER":
		return []FetchItem{{Kind: FiBodySection, Section: Section{Kind: SecHeader}, Peek: true}}, nil
	case "RFC822.TEXT":
		return []FetchItem{{Kind: FiBodySection, Section: Section{Kind: SecText}}}, nil
	}

	if sec, ok := splitSectioned(word, "BODY.PEEK"); ok {
		s, partial, err := parseSectionAndPartial(sec)
		if err != nil {
			return nil, err
		}
		return []FetchItem{{Kind: FiBodySection, Section: s, Peek: true, Partial: partial}}, nil
	}
	if sec, ok := splitSectioned(word, "BODY"); ok {
		s, partial, err := parseSectionAndPartial(sec)
		if err != nil {
			return nil, err
		}
		return []FetchItem{{Kind: FiBodySection, Section: s, Partial: partial}}, nil
	}
	if sec, ok := splitSectioned(word, "BINARY.PEEK"); ok {
		s, partial, err := parseSectionAndPartial(sec)
		if err != nil {
			return nil, err
		}
		return []FetchItem{{Kind: FiBinarySection, Section: s, Peek: true, Partial: partial}}, nil
	}
	if sec, ok := splitSectioned(word, "BINARY.SIZE"); ok {
		s, _, err := parseSectionAndPartial(sec)
		if err != nil {
			return nil, err
		}
		return []FetchItem{{Kind: FiBinarySize, Section: s}}, nil
	}
	if sec, ok := splitSectioned(word, "BINARY"); ok {
		s, partial, err := parseSectionAndPartial(sec)
		if err != nil {
			return nil, err
		}
		return []FetchItem{{Kind: FiBinarySection, Section: s, Partial: partial}}, nil
	}

	return nil, &ParseError{Reason: "unknown FETCH data item " + word}
}

// splitSectioned matches "<prefix>[<section>]<partial>" and returns the
// bracketed contents plus the trailing partial text.
func splitSectioned(word, prefix string) (inside string, ok bool) {
	if !strings.HasPrefix(strings.ToUpper(word), prefix+"[") {
		return "", false
	}
	body := word[len(prefix):]
	if !strings.HasPrefix(body, "[") {
		return "", false
	}
	end := strings.IndexByte(body, ']')
	if end < 0 {
		return "", false
	}
	return body[1:end] + body[end+1:], true
}

// parseSectionAndPartial parses "<section-spec>" possibly followed by
// "<start.count>", where section-spec came from inside the brackets and the
// partial suffix (if any) trails immediately after the closing bracket.
func parseSectionAndPartial(s string) (Section, Partial, error) {
	bracketEnd := strings.IndexByte(s, '<')
	secStr := s
	partialStr := ""
	if bracketEnd >= 0 {
		secStr = s[:bracketEnd]
		partialStr = s[bracketEnd:]
	}

	sec, err := parseSection(secStr)
	if err != nil {
		return Section{}, Partial{}, err
	}

	var partial Partial
	if partialStr != "" {
		partial.Present = true
		partialStr = strings.TrimPrefix(partialStr, "<")
		partialStr = strings.TrimSuffix(partialStr, ">")
		if dot := strings.IndexByte(partialStr, '.'); dot >= 0 {
			start, err1 := parseUintStrict(partialStr[:dot])
			count, err2 := parseUintStrict(partialStr[dot+1:])
			if err1 != nil || err2 != nil {
				return Section{}, Partial{}, &ParseError{Reason: "malformed partial range"}
			}
			partial.Start = int64(start)
			partial.Count = int64(count)
			partial.HasCount = true
		} else {
			start, err := parseUintStrict(partialStr)
			if err != nil {
				return Section{}, Partial{}, &ParseError{Reason: "malformed partial range"}
			}
			partial.Start = int64(start)
		}
	}
	return sec, partial, nil
}

func parseUintStrict(s string) (uint64, error) {
	var n uint64
	if s == "" {
		return 0, &ParseError{Reason: "empty number"}
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, &ParseError{Reason: "invalid number"}
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

// parseSection parses a section specifier string (already extracted from
// between the brackets): "", "HEADER", "HEADER.FIELDS (To From)",
// "HEADER.FIELDS.NOT (...)", "TEXT", "MIME", "1.2", "1.2.HEADER", etc.
func parseSection(s string) (Section, error) {
	if s == "" {
		return Section{}, nil
	}

	// Split off a parenthesized field-name list, if present (HEADER.FIELDS).
	var fieldList string
	if paren := strings.IndexByte(s, '('); paren >= 0 {
		close := strings.LastIndexByte(s, ')')
		if close < paren {
			return Section{}, &ParseError{Reason: "malformed HEADER.FIELDS list"}
		}
		fieldList = s[paren+1 : close]
		s = strings.TrimRight(s[:paren], " ")
	}

	parts := strings.Split(s, ".")
	var path []int
	i := 0
	for i < len(parts) {
		n, err := parseUintStrict(parts[i])
		if err != nil {
			break
		}
		path = append(path, int(n))
		i++
	}

	sec := Section{Part: path}
	if i >= len(parts) {
		return sec, nil
	}

	switch strings.ToUpper(parts[i]) {
	case "HEADER":
		if i+2 < len(parts) && strings.EqualFold(parts[i+1], "FIELDS") && strings.EqualFold(parts[i+2], "NOT") {
			sec.Kind = SecHeaderFieldsNot
			sec.Fields = splitFields(fieldList)
		} else if i+1 < len(parts) && strings.EqualFold(parts[i+1], "FIELDS") {
			sec.Kind = SecHeaderFields
			sec.Fields = splitFields(fieldList)
		} else {
			sec.Kind = SecHeader
		}
	case "TEXT":
		sec.Kind = SecText
	case "MIME":
		sec.Kind = SecMime
	default:
		return Section{}, &ParseError{Reason: "unknown section keyword " + parts[i]}
	}
	return sec, nil
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Fields(s) {
		out = append(out, strings.Trim(f, "\""))
	}
	return out
}
