// Package response builds the IMAP wire-format fragments FETCH emits for
// ENVELOPE and BODYSTRUCTURE data items, recursively following RFC 3501
// §7.4.2, from the raw RFC 5322 message bytes the store hands back.
package response

import (
	"fmt"
	"net/mail"
	"strings"
)

// BuildEnvelope renders the ENVELOPE structure for a raw message:
// (date subject from sender reply-to to cc bcc in-reply-to message-id).
func BuildEnvelope(rawMsg string) string {
	h := parseHeader(rawMsg)

	date := h.Get("Date")
	subject := h.Get("Subject")
	from := h.Get("From")
	sender := h.Get("Sender")
	replyTo := h.Get("Reply-To")
	to := h.Get("To")
	cc := h.Get("Cc")
	bcc := h.Get("Bcc")
	inReplyTo := h.Get("In-Reply-To")
	messageID := h.Get("Message-Id")

	// RFC 3501 defaults: an absent Sender/Reply-To falls back to From.
	if sender == "" {
		sender = from
	}
	if replyTo == "" {
		replyTo = from
	}

	return fmt.Sprintf("(%s %s %s %s %s %s %s %s %s %s)",
		QuoteOrNIL(date),
		QuoteOrNIL(subject),
		addressList(from),
		addressList(sender),
		addressList(replyTo),
		addressList(to),
		addressList(cc),
		addressList(bcc),
		QuoteOrNIL(inReplyTo),
		QuoteOrNIL(messageID),
	)
}

// QuoteOrNIL quotes str for an IMAP response, or returns NIL if empty.
func QuoteOrNIL(str string) string {
	if str == "" {
		return "NIL"
	}
	str = strings.ReplaceAll(str, "\\", "\\\\")
	str = strings.ReplaceAll(str, "\"", "\\\"")
	return "\"" + str + "\""
}

// addressList renders an address header's value as an IMAP address-list:
// a parenthesized list of (name route mailbox host) 4-tuples, or NIL.
// route is always NIL; the source-route form is obsolete (RFC 5322 §A.5).
func addressList(header string) string {
	if header == "" {
		return "NIL"
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil || len(addrs) == 0 {
		// Fall back to a single best-effort parse so a malformed header
		// still produces something rather than silently dropping the
		// field (the teacher's hand-rolled parser never errors either).
		if a, err := mail.ParseAddress(header); err == nil {
			addrs = []*mail.Address{a}
		} else {
			return "NIL"
		}
	}

	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		mailbox, host := a.Address, ""
		if i := strings.LastIndexByte(a.Address, '@'); i >= 0 {
			mailbox, host = a.Address[:i], a.Address[i+1:]
		}
		parts = append(parts, fmt.Sprintf("(%s NIL %s %s)",
			QuoteOrNIL(a.Name), QuoteOrNIL(mailbox), QuoteOrNIL(host)))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// header is the small header-folding view both ENVELOPE and BODYSTRUCTURE
// need, independent of net/mail.ReadMessage's requirement that the message
// be well-formed enough to yield a body reader.
type header map[string]string

func (h header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// parseHeader extracts and unfolds every header field from rawMsg, per
// RFC 5322 §2.2.3 (a continuation line starts with space or tab).
func parseHeader(rawMsg string) header {
	h := make(header)
	lines := strings.Split(headerBlock(rawMsg), "\n")
	var curName string
	var curVal strings.Builder
	flush := func() {
		if curName != "" {
			h[strings.ToLower(curName)] = strings.TrimSpace(curVal.String())
		}
		curVal.Reset()
	}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			curVal.WriteByte(' ')
			curVal.WriteString(strings.TrimSpace(line))
			continue
		}
		flush()
		curName = ""
		if colon := strings.IndexByte(line, ':'); colon >= 0 {
			curName = strings.TrimSpace(line[:colon])
			curVal.WriteString(strings.TrimSpace(line[colon+1:]))
		}
	}
	flush()
	return h
}

// headerBlock returns everything before the first blank line.
func headerBlock(rawMsg string) string {
	if i := strings.Index(rawMsg, "\r\n\r\n"); i >= 0 {
		return rawMsg[:i]
	}
	if i := strings.Index(rawMsg, "\n\n"); i >= 0 {
		return rawMsg[:i]
	}
	return rawMsg
}

// MessageBody returns everything after the header/body boundary.
func MessageBody(rawMsg string) string {
	if i := strings.Index(rawMsg, "\r\n\r\n"); i >= 0 {
		return rawMsg[i+4:]
	}
	if i := strings.Index(rawMsg, "\n\n"); i >= 0 {
		return rawMsg[i+2:]
	}
	return ""
}
