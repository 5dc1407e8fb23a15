package store

import (
	"fmt"
	"strings"
	"time"

	"kakimail/internal/imapparser"
)

// Search runs q against mailboxID and returns the matching seqnums (or
// uids, if uidMode) in ascending order. It builds one parameterized SQL
// WHERE clause per spec.md §4.D and executes it directly against the mail
// table; RETURN-option reduction (MIN/MAX/ALL/COUNT/SAVE) and ESEARCH
// formatting are the caller's job, since they are pure functions of this
// result set and don't need the store lock held.
func (s *Store) Search(q *imapparser.SearchQuery, mailboxID int64, uidMode bool) ([]int64, error) {
	s.mu.Lock()
	maxSeq, err := s.maxColumnLocked(mailboxID, "seqnum")
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	maxUID, err := s.maxColumnLocked(mailboxID, "uid")
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	var clauses []string
	var args []interface{}
	for _, k := range q.Keys {
		frag, a, err := sqlForKey(k, maxSeq, maxUID)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, "("+frag+")")
		args = append(args, a...)
	}
	where := "1=1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	column := "seqnum"
	if uidMode {
		column = "uid"
	}

	s.mu.Lock()
	rows, err := s.db.Query(
		`SELECT `+column+` FROM mail WHERE mailbox_id = ? AND `+where+` ORDER BY `+column,
		append([]interface{}{mailboxID}, args...)...,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, v)
	}
	s.mu.Unlock()
	return out, rows.Err()
}

func sqlForKey(k imapparser.SearchKey, maxSeq, maxUID int64) (string, []interface{}, error) {
	switch k.Kind {
	case imapparser.SKAll:
		return "data LIKE '%'", nil, nil
	case imapparser.SKAnswered:
		return "flags LIKE ?", []interface{}{LikePattern(FlagAnswered, true)}, nil
	case imapparser.SKUnanswered:
		return "flags LIKE ?", []interface{}{LikePattern(FlagAnswered, false)}, nil
	case imapparser.SKDeleted:
		return "flags LIKE ?", []interface{}{LikePattern(FlagDeleted, true)}, nil
	case imapparser.SKUndeleted:
		return "flags LIKE ?", []interface{}{LikePattern(FlagDeleted, false)}, nil
	case imapparser.SKDraft:
		return "flags LIKE ?", []interface{}{LikePattern(FlagDraft, true)}, nil
	case imapparser.SKUndraft:
		return "flags LIKE ?", []interface{}{LikePattern(FlagDraft, false)}, nil
	case imapparser.SKFlagged:
		return "flags LIKE ?", []interface{}{LikePattern(FlagFlagged, true)}, nil
	case imapparser.SKUnflagged:
		return "flags LIKE ?", []interface{}{LikePattern(FlagFlagged, false)}, nil
	case imapparser.SKSeen:
		return "flags LIKE ?", []interface{}{LikePattern(FlagSeen, true)}, nil
	case imapparser.SKUnseen:
		return "flags LIKE ?", []interface{}{LikePattern(FlagSeen, false)}, nil
	case imapparser.SKNew:
		// NEW = RECENT AND UNSEEN; this store does not track \Recent
		// separately (it is derived, never stored), so NEW degrades to
		// UNSEEN, matching a server with no other concurrent session.
		return "flags LIKE ?", []interface{}{LikePattern(FlagSeen, false)}, nil
	case imapparser.SKOld, imapparser.SKRecent:
		return "1=1", nil, nil

	case imapparser.SKKeyword:
		if pat, ok := KeywordLikePattern(k.Str, true); ok {
			return "flags LIKE ?", []interface{}{pat}, nil
		}
		return "1=0", nil, nil
	case imapparser.SKUnkeyword:
		if pat, ok := KeywordLikePattern(k.Str, false); ok {
			return "flags LIKE ?", []interface{}{pat}, nil
		}
		return "1=1", nil, nil

	case imapparser.SKBcc:
		return "recipients LIKE ?", []interface{}{like(k.Str)}, nil
	case imapparser.SKCc:
		return "recipients LIKE ?", []interface{}{like(k.Str)}, nil
	case imapparser.SKFrom:
		return "sender LIKE ?", []interface{}{like(k.Str)}, nil
	case imapparser.SKTo:
		return "recipients LIKE ?", []interface{}{like(k.Str)}, nil
	case imapparser.SKSubject:
		return "header_contains(data, 'Subject', ?)", []interface{}{k.Str}, nil
	case imapparser.SKHeader:
		return "header_contains(data, ?, ?)", []interface{}{k.Field, k.Str}, nil
	case imapparser.SKBody:
		return "body_contains(data, ?)", []interface{}{k.Str}, nil
	case imapparser.SKText:
		return "data LIKE ?", []interface{}{like(k.Str)}, nil

	case imapparser.SKBefore:
		return "unixepoch(date) < ?", []interface{}{k.DateDays}, nil
	case imapparser.SKOn:
		return "unixepoch(date) >= ? AND unixepoch(date) < ?", []interface{}{k.DateDays, k.DateDays + 86400}, nil
	case imapparser.SKSince:
		return "unixepoch(date) >= ?", []interface{}{k.DateDays}, nil

	case imapparser.SKSentBefore:
		return "rfc2822_to_date(regex_capture('(?im)^Date: ([^\r\n]*)', data, 1)) < ?", []interface{}{sentDateBound(k.DateDays)}, nil
	case imapparser.SKSentOn:
		lo, hi := sentDateBound(k.DateDays), sentDateBound(k.DateDays+86400)
		return "rfc2822_to_date(regex_capture('(?im)^Date: ([^\r\n]*)', data, 1)) >= ? AND rfc2822_to_date(regex_capture('(?im)^Date: ([^\r\n]*)', data, 1)) < ?",
			[]interface{}{lo, hi}, nil
	case imapparser.SKSentSince:
		return "rfc2822_to_date(regex_capture('(?im)^Date: ([^\r\n]*)', data, 1)) >= ?", []interface{}{sentDateBound(k.DateDays)}, nil

	case imapparser.SKLarger:
		return "length(data) > ?", []interface{}{k.Size}, nil
	case imapparser.SKSmaller:
		return "length(data) < ?", []interface{}{k.Size}, nil

	case imapparser.SKNot:
		inner, a, err := sqlForKey(*k.Left, maxSeq, maxUID)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", a, nil
	case imapparser.SKOr:
		l, la, err := sqlForKey(*k.Left, maxSeq, maxUID)
		if err != nil {
			return "", nil, err
		}
		r, ra, err := sqlForKey(*k.Right, maxSeq, maxUID)
		if err != nil {
			return "", nil, err
		}
		return "(" + l + ") OR (" + r + ")", append(la, ra...), nil
	case imapparser.SKAnd:
		l, la, err := sqlForKey(*k.Left, maxSeq, maxUID)
		if err != nil {
			return "", nil, err
		}
		r, ra, err := sqlForKey(*k.Right, maxSeq, maxUID)
		if err != nil {
			return "", nil, err
		}
		return "(" + l + ") AND (" + r + ")", append(la, ra...), nil

	case imapparser.SKSeqSet:
		frag, a := seqSetSQL("seqnum", k.Set, maxSeq)
		return frag, a, nil
	case imapparser.SKUID:
		frag, a := seqSetSQL("uid", k.Set, maxUID)
		return frag, a, nil
	}
	return "", nil, fmt.Errorf("unhandled search key kind %d", k.Kind)
}

func like(s string) string {
	return "%" + s + "%"
}

// sentDateBound converts the Unix-seconds value ParseSearchDate
// produces into the store's canonical on-disk date string, so it can be
// compared directly against rfc2822_to_date's output.
func sentDateBound(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format("2006-01-02 15:04:05.000-07:00")
}

// seqSetSQL renders a sequence set as a parameterized OR of range/equality
// fragments over column, resolving "*" against maxVal (the largest current
// seqnum or uid in the mailbox, per spec.md §4.B).
func seqSetSQL(column string, set imapparser.SeqSet, maxVal int64) (string, []interface{}) {
	if len(set) == 0 {
		return "0=1", nil
	}
	var parts []string
	var args []interface{}
	for _, r := range set {
		lo, hi := r.Lo, r.Hi
		if r.IsStarLo {
			lo = uint32(maxVal)
		}
		if r.IsStarHi {
			hi = uint32(maxVal)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo == hi {
			parts = append(parts, column+" = ?")
			args = append(args, lo)
		} else {
			parts = append(parts, column+" BETWEEN ? AND ?")
			args = append(args, lo, hi)
		}
	}
	return strings.Join(parts, " OR "), args
}
