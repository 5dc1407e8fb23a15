package store

import (
	"database/sql"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

var registerOnce sync.Once

// registerDriverOnce registers a sqlite3 driver variant that exposes
// regex_capture and rfc2822_to_date as SQL functions, used by the
// SENTBEFORE/SENTON/SENTSINCE search keys to evaluate header dates without
// materializing rows, plus header_contains/body_contains for the HEADER,
// SUBJECT and BODY search keys. Go's RE2 engine has no lookahead, so the
// header/body split spec.md's translation table expresses with a negative
// lookahead is done directly in Go instead of through the REGEXP operator.
func registerDriverOnce() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("regex_capture", regexCapture, true); err != nil {
					return err
				}
				if err := conn.RegisterFunc("rfc2822_to_date", rfc2822ToDate, true); err != nil {
					return err
				}
				if err := conn.RegisterFunc("header_contains", headerContains, true); err != nil {
					return err
				}
				return conn.RegisterFunc("body_contains", bodyContains, true)
			},
		})
	})
}

// splitHeaderBody separates a raw RFC 5322 message into its header block
// and body, tolerating both CRLF and bare-LF line endings.
func splitHeaderBody(data string) (header, body string) {
	if i := strings.Index(data, "\r\n\r\n"); i >= 0 {
		return data[:i], data[i+4:]
	}
	if i := strings.Index(data, "\n\n"); i >= 0 {
		return data[:i], data[i+2:]
	}
	return data, ""
}

// headerContains reports whether field's unfolded value in data contains
// needle, case-insensitively.
func headerContains(data, field, needle string) bool {
	header, _ := splitHeaderBody(data)
	needle = strings.ToLower(needle)
	lines := strings.Split(header, "\n")
	fieldUpper := strings.ToUpper(field)
	var value strings.Builder
	inField := false
	flush := func() bool {
		return inField && strings.Contains(strings.ToLower(value.String()), needle)
	}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if inField {
				value.WriteByte(' ')
				value.WriteString(strings.TrimSpace(line))
			}
			continue
		}
		if inField && flush() {
			return true
		}
		value.Reset()
		inField = false
		if colon := strings.IndexByte(line, ':'); colon >= 0 {
			if strings.ToUpper(strings.TrimSpace(line[:colon])) == fieldUpper {
				inField = true
				value.WriteString(strings.TrimSpace(line[colon+1:]))
			}
		}
	}
	return flush()
}

// bodyContains reports whether the message body (everything after the
// header/body blank-line boundary) contains needle, case-insensitively.
func bodyContains(data, needle string) bool {
	_, body := splitHeaderBody(data)
	return strings.Contains(strings.ToLower(body), strings.ToLower(needle))
}

var regexCache sync.Map // pattern string -> *regexp.Regexp

func compileCached(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// regexCapture returns the text captured by group n of pattern in text, or
// the empty string if the pattern does not match or the group is out of
// range.
func regexCapture(pattern, text string, group int64) string {
	re, err := compileCached(pattern)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil || int(group) >= len(m) {
		return ""
	}
	return m[group]
}

// rfc2822ToDate parses an RFC 5322 Date header value into the store's
// canonical on-disk date format, returning the empty string if text does
// not parse under any recognized layout.
func rfc2822ToDate(text string) string {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
	} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05.000-07:00")
		}
	}
	return ""
}
