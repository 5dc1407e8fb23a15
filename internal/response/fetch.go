package response

import (
	"fmt"
	"mime"
	"strings"

	"kakimail/internal/imapparser"
)

// ExtractSection returns the bytes a BODY[<section>]/BINARY[<section>]
// FETCH item names, navigating into multipart parts by sec.Part first.
func ExtractSection(rawMsg string, sec imapparser.Section) (string, error) {
	part := rawMsg
	for _, idx := range sec.Part {
		child, err := nthMultipartChild(part, idx)
		if err != nil {
			return "", err
		}
		part = child
	}

	switch sec.Kind {
	case imapparser.SecNone:
		if len(sec.Part) == 0 {
			return part, nil
		}
		return part, nil
	case imapparser.SecHeader, imapparser.SecMime:
		return headerBlock(part) + "\r\n\r\n", nil
	case imapparser.SecHeaderFields:
		return filteredHeaders(part, sec.Fields, false), nil
	case imapparser.SecHeaderFieldsNot:
		return filteredHeaders(part, sec.Fields, true), nil
	case imapparser.SecText:
		return MessageBody(part), nil
	}
	return "", fmt.Errorf("unsupported section")
}

// nthMultipartChild returns the idx'th (1-based) child of part, which must
// be a multipart message.
func nthMultipartChild(part string, idx int) (string, error) {
	h := parseHeader(part)
	mediaType, params, err := parseContentType(h)
	if err != nil || !strings.EqualFold(strings.SplitN(mediaType, "/", 2)[0], "multipart") {
		if idx == 1 {
			return part, nil
		}
		return "", fmt.Errorf("section part out of range")
	}
	boundary := params["boundary"]
	children := splitMultipart(MessageBody(part), boundary)
	if idx < 1 || idx > len(children) {
		return "", fmt.Errorf("section part out of range")
	}
	return children[idx-1], nil
}

func parseContentType(h header) (string, map[string]string, error) {
	ct := h.Get("Content-Type")
	if ct == "" {
		return "text/plain", map[string]string{"charset": "us-ascii"}, nil
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "text/plain", map[string]string{"charset": "us-ascii"}, err
	}
	return mt, params, nil
}

// filteredHeaders renders the raw header lines whose field name is in (or,
// if exclude, not in) names, case-insensitively, matching RFC 3501's
// HEADER.FIELDS / HEADER.FIELDS.NOT semantics.
func filteredHeaders(msg string, names []string, exclude bool) string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToUpper(n)] = true
	}

	var out strings.Builder
	lines := strings.Split(headerBlock(msg), "\n")
	include := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
			if include {
				out.WriteString(trimmed)
				out.WriteString("\r\n")
			}
			continue
		}
		include = false
		if colon := strings.IndexByte(trimmed, ':'); colon >= 0 {
			name := strings.ToUpper(strings.TrimSpace(trimmed[:colon]))
			matched := want[name]
			if matched != exclude {
				include = true
			}
		}
		if include {
			out.WriteString(trimmed)
			out.WriteString("\r\n")
		}
	}
	out.WriteString("\r\n")
	return out.String()
}

// ApplyPartial slices data per a FETCH <start.count> partial specifier.
func ApplyPartial(data string, p imapparser.Partial) string {
	if !p.Present {
		return data
	}
	start := p.Start
	if start < 0 {
		start = 0
	}
	if start >= int64(len(data)) {
		return ""
	}
	if !p.HasCount {
		return data[start:]
	}
	end := start + p.Count
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[start:end]
}
