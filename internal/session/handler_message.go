package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"kakimail/internal/imapparser"
	"kakimail/internal/response"
	"kakimail/internal/store"
)

// archiveDeletedMessages mirrors every \Deleted-flagged message in the
// selected mailbox to S3 before EXPUNGE removes its row. A nil Archiver
// (archiving disabled) makes this a no-op.
func archiveDeletedMessages(sess *Session) {
	if sess.deps.Archiver == nil {
		return
	}
	q := &imapparser.SearchQuery{Keys: []imapparser.SearchKey{{Kind: imapparser.SKDeleted}}}
	uids, err := sess.deps.Store.Search(q, sess.state.MailboxID, true)
	if err != nil || len(uids) == 0 {
		return
	}
	set := make(imapparser.SeqSet, len(uids))
	for i, u := range uids {
		set[i] = imapparser.SeqRange{Lo: uint32(u), Hi: uint32(u)}
	}
	msgs, err := sess.deps.Store.Fetch(set, true, sess.state.MailboxID)
	if err != nil {
		return
	}
	ctx := context.Background()
	for _, m := range msgs {
		sess.deps.Archiver.Put(ctx, m.UID, m.Data)
	}
}

// handleAppend implements APPEND mailbox (flags) (date) {literal}
// (spec.md §4.C). The literal has already been resolved into a Quoted node
// by the time dispatch reaches here.
func handleAppend(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) < 2 {
		return []string{tagged(tag, "BAD", "APPEND requires a mailbox and message literal")}, sess.state, ActionNone
	}
	name, ok := imapparser.AtomOrQuoted(args[0])
	if !ok {
		return []string{tagged(tag, "BAD", "APPEND requires a mailbox name")}, sess.state, ActionNone
	}

	idx := 1
	var flagNames []string
	if lst, ok := args[idx].(imapparser.List); ok {
		for _, n := range lst {
			if s, ok := imapparser.AtomOrQuoted(n); ok {
				flagNames = append(flagNames, s)
			}
		}
		idx++
	}

	internalDate := time.Now()
	if idx < len(args)-1 {
		if s, ok := imapparser.AtomOrQuoted(args[idx]); ok {
			if t, err := imapparser.ParseAppendDate(s); err == nil {
				internalDate = t
				idx++
			}
		}
	}

	if idx >= len(args) {
		return []string{tagged(tag, "BAD", "APPEND requires a message literal")}, sess.state, ActionNone
	}
	data, ok := imapparser.AtomOrQuoted(args[idx])
	if !ok {
		return []string{tagged(tag, "BAD", "APPEND requires a message literal")}, sess.state, ActionNone
	}

	st := sess.deps.Store
	mailboxID, err := st.GetMailboxID(sess.state.UserID, name)
	if err != nil {
		return []string{tagged(tag, "NO", "[TRYCREATE] no such mailbox")}, sess.state, ActionNone
	}

	flags := store.NewFlagBitmap(flagNames)
	sender, recipients := senderAndRecipientsFromHeaders(data)
	uid, err := st.Replicate(store.Mail{Sender: sender, Recipients: recipients, Data: data}, mailboxID, flags, internalDate)
	if err != nil {
		return []string{tagged(tag, "NO", "APPEND failed: "+err.Error())}, sess.state, ActionNone
	}

	uidValidity := sess.state.UIDValidity
	if uidValidity == 0 {
		uidValidity = time.Now().Unix()
	}
	return []string{
		fmt.Sprintf("%s OK [APPENDUID %d %d] APPEND completed", tag, uidValidity, uid),
	}, sess.state, ActionNone
}

// senderAndRecipientsFromHeaders pulls the flat From/To/Cc/Bcc strings the
// store indexes SEARCH FROM/TO/CC/BCC against directly off the raw message,
// independent of the structured ENVELOPE rendering in the response package.
func senderAndRecipientsFromHeaders(rawMsg string) (string, string) {
	from := headerValue(rawMsg, "From")
	to := headerValue(rawMsg, "To")
	cc := headerValue(rawMsg, "Cc")
	bcc := headerValue(rawMsg, "Bcc")
	recipients := strings.TrimSpace(strings.Join(filterEmpty([]string{to, cc, bcc}), ", "))
	return from, recipients
}

func filterEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func headerValue(rawMsg, name string) string {
	lines := strings.Split(rawMsg, "\n")
	prefix := strings.ToLower(name) + ":"
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(l), prefix) {
			return strings.TrimSpace(l[len(prefix):])
		}
	}
	return ""
}

func handleExpunge(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	if sess.state.ReadOnly {
		return []string{tagged(tag, "NO", "mailbox is read-only")}, sess.state, ActionNone
	}
	archiveDeletedMessages(sess)
	seqnums, err := sess.deps.Store.Expunge(sess.state.MailboxID, nil)
	if err != nil {
		return []string{tagged(tag, "NO", "EXPUNGE failed: "+err.Error())}, sess.state, ActionNone
	}
	lines := make([]string, 0, len(seqnums)+1)
	for _, s := range seqnums {
		lines = append(lines, fmt.Sprintf("* %d EXPUNGE", s))
	}
	lines = append(lines, tagged(tag, "OK", "EXPUNGE completed"))
	return lines, sess.state, ActionNone
}

// handleSearch implements SEARCH/UID SEARCH including the RETURN option set
// and ESEARCH reply format (SPEC_FULL §1 component F).
func handleSearch(sess *Session, tag string, uidMode bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	q, err := imapparser.ParseSearch(args)
	if err != nil {
		return []string{tagged(tag, "BAD", err.Error())}, sess.state, ActionNone
	}
	results, err := sess.deps.Store.Search(q, sess.state.MailboxID, uidMode)
	if err != nil {
		return []string{tagged(tag, "NO", "SEARCH failed: "+err.Error())}, sess.state, ActionNone
	}

	nums := make([]uint32, len(results))
	for i, v := range results {
		nums[i] = uint32(v)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	// RFC 9051: any explicit RETURN (...) triggers ESEARCH output, even
	// RETURN (ALL); only a command with no RETURN option at all gets the
	// legacy "* SEARCH ..." line.
	if !q.ReturnPresent {
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = fmt.Sprintf("%d", n)
		}
		line := "* SEARCH"
		if len(parts) > 0 {
			line += " " + strings.Join(parts, " ")
		}
		return []string{line, tagged(tag, "OK", "SEARCH completed")}, sess.state, ActionNone
	}

	var fields []string
	if uidMode {
		fields = append(fields, "UID")
	}
	for _, o := range q.Return {
		switch o {
		case imapparser.RetMin:
			if len(nums) > 0 {
				fields = append(fields, fmt.Sprintf("MIN %d", nums[0]))
			}
		case imapparser.RetMax:
			if len(nums) > 0 {
				fields = append(fields, fmt.Sprintf("MAX %d", nums[len(nums)-1]))
			}
		case imapparser.RetCount:
			fields = append(fields, fmt.Sprintf("COUNT %d", len(nums)))
		case imapparser.RetAll:
			fields = append(fields, fmt.Sprintf("ALL %s", imapparser.Compress(nums)))
		case imapparser.RetSave:
			saved := make([]int64, len(nums))
			for i, n := range nums {
				saved[i] = int64(n)
			}
			next := sess.state
			next.SearchRes = saved
			sess.state = next
		}
	}
	return []string{
		fmt.Sprintf("* ESEARCH (TAG %q) %s", tag, strings.Join(fields, " ")),
		tagged(tag, "OK", "SEARCH completed"),
	}, sess.state, ActionNone
}

// handleFetch implements FETCH/UID FETCH.
func handleFetch(sess *Session, tag string, uidMode bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) < 2 {
		return []string{tagged(tag, "BAD", "FETCH requires a sequence set and data items")}, sess.state, ActionNone
	}
	setStr, ok := imapparser.AtomOrQuoted(args[0])
	if !ok {
		return []string{tagged(tag, "BAD", "malformed sequence set")}, sess.state, ActionNone
	}
	set, err := imapparser.ParseSeqSet(setStr)
	if err != nil {
		return []string{tagged(tag, "BAD", err.Error())}, sess.state, ActionNone
	}
	items, err := imapparser.ParseFetchItems(args[1])
	if err != nil {
		return []string{tagged(tag, "BAD", err.Error())}, sess.state, ActionNone
	}
	if uidMode {
		hasUID := false
		for _, it := range items {
			if it.Kind == imapparser.FiUID {
				hasUID = true
			}
		}
		if !hasUID {
			items = append(items, imapparser.FetchItem{Kind: imapparser.FiUID})
		}
	}

	msgs, err := sess.deps.Store.Fetch(set, uidMode, sess.state.MailboxID)
	if err != nil {
		return []string{tagged(tag, "NO", "FETCH failed: "+err.Error())}, sess.state, ActionNone
	}

	var lines []string
	for _, m := range msgs {
		parts, seenFlag := buildFetchParts(m, items)
		lines = append(lines, fmt.Sprintf("* %d FETCH (%s)", m.Seqnum, strings.Join(parts, " ")))
		if seenFlag {
			newFlags := store.ApplyFlagOp(m.Flags, "+FLAGS", []string{store.FlagName(store.FlagSeen)})
			_ = sess.deps.Store.SetFlags(m.UID, newFlags)
		}
	}
	lines = append(lines, tagged(tag, "OK", "FETCH completed"))
	return lines, sess.state, ActionNone
}

// buildFetchParts renders every requested data item for one message and
// reports whether a non-peek BODY[...] fetch requires setting \Seen.
func buildFetchParts(m store.FetchedMail, items []imapparser.FetchItem) ([]string, bool) {
	var parts []string
	setSeen := false
	for _, it := range items {
		switch it.Kind {
		case imapparser.FiUID:
			parts = append(parts, fmt.Sprintf("UID %d", m.UID))
		case imapparser.FiFlags:
			names := store.FlagsToNames(m.Flags)
			parts = append(parts, fmt.Sprintf("FLAGS (%s)", strings.Join(names, " ")))
		case imapparser.FiInternalDate:
			parts = append(parts, fmt.Sprintf("INTERNALDATE %q", imapparser.FormatInternalDate(m.Date)))
		case imapparser.FiRFC822Size:
			parts = append(parts, fmt.Sprintf("RFC822.SIZE %d", len(m.Data)))
		case imapparser.FiEnvelope:
			parts = append(parts, "ENVELOPE "+response.BuildEnvelope(m.Data))
		case imapparser.FiBodyStructure:
			parts = append(parts, "BODYSTRUCTURE "+response.BuildBodyStructure(m.Data))
		case imapparser.FiBodyNoArgs:
			parts = append(parts, "BODY "+response.BuildBodyStructure(m.Data))
		case imapparser.FiBodySection:
			section, err := response.ExtractSection(m.Data, it.Section)
			if err != nil {
				section = ""
			}
			section = response.ApplyPartial(section, it.Partial)
			parts = append(parts, fmt.Sprintf("BODY[%s] {%d}\r\n%s", it.Section.String(), len(section), section))
			if !it.Peek {
				setSeen = true
			}
		case imapparser.FiBinarySection:
			section, err := response.ExtractSection(m.Data, it.Section)
			if err != nil {
				section = ""
			}
			section = response.ApplyPartial(section, it.Partial)
			parts = append(parts, fmt.Sprintf("BINARY[%s] {%d}\r\n%s", it.Section.String(), len(section), section))
			if !it.Peek {
				setSeen = true
			}
		case imapparser.FiBinarySize:
			section, err := response.ExtractSection(m.Data, it.Section)
			if err != nil {
				section = ""
			}
			parts = append(parts, fmt.Sprintf("BINARY.SIZE[%s] %d", it.Section.String(), len(section)))
		}
	}
	return parts, setSeen
}

// handleStore implements STORE/UID STORE (spec.md §4.C).
func handleStore(sess *Session, tag string, uidMode bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) < 3 {
		return []string{tagged(tag, "BAD", "STORE requires a sequence set, operation, and flags")}, sess.state, ActionNone
	}
	if sess.state.ReadOnly {
		return []string{tagged(tag, "NO", "mailbox is read-only")}, sess.state, ActionNone
	}
	setStr, ok := imapparser.AtomOrQuoted(args[0])
	if !ok {
		return []string{tagged(tag, "BAD", "malformed sequence set")}, sess.state, ActionNone
	}
	set, err := imapparser.ParseSeqSet(setStr)
	if err != nil {
		return []string{tagged(tag, "BAD", err.Error())}, sess.state, ActionNone
	}
	opTok, ok := imapparser.AtomOrQuoted(args[1])
	if !ok {
		return []string{tagged(tag, "BAD", "malformed STORE operation")}, sess.state, ActionNone
	}
	silent := strings.HasSuffix(strings.ToUpper(opTok), ".SILENT")
	op := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(opTok), ".SILENT"))
	if op != "FLAGS" && op != "+FLAGS" && op != "-FLAGS" {
		return []string{tagged(tag, "BAD", "unknown STORE operation")}, sess.state, ActionNone
	}

	var names []string
	switch v := args[2].(type) {
	case imapparser.List:
		for _, n := range v {
			if s, ok := imapparser.AtomOrQuoted(n); ok {
				names = append(names, s)
			}
		}
	default:
		if s, ok := imapparser.AtomOrQuoted(v); ok {
			names = append(names, s)
		}
	}

	st := sess.deps.Store
	msgs, err := st.Fetch(set, uidMode, sess.state.MailboxID)
	if err != nil {
		return []string{tagged(tag, "NO", "STORE failed: "+err.Error())}, sess.state, ActionNone
	}

	var lines []string
	for _, m := range msgs {
		newFlags := store.ApplyFlagOp(m.Flags, op, names)
		if err := st.SetFlags(m.UID, newFlags); err != nil {
			return []string{tagged(tag, "NO", "STORE failed: "+err.Error())}, sess.state, ActionNone
		}
		if !silent {
			resultNames := store.FlagsToNames(newFlags)
			extra := ""
			if uidMode {
				extra = fmt.Sprintf(" UID %d", m.UID)
			}
			lines = append(lines, fmt.Sprintf("* %d FETCH (FLAGS (%s)%s)", m.Seqnum, strings.Join(resultNames, " "), extra))
		}
	}
	lines = append(lines, tagged(tag, "OK", "STORE completed"))
	return lines, sess.state, ActionNone
}

func handleCopy(sess *Session, tag string, uidMode bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return copyOrMove(sess, tag, uidMode, args, false)
}

func handleMove(sess *Session, tag string, uidMode bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return copyOrMove(sess, tag, uidMode, args, true)
}

func copyOrMove(sess *Session, tag string, uidMode bool, args []imapparser.Node, move bool) ([]string, State, Action) {
	if len(args) != 2 {
		return []string{tagged(tag, "BAD", "requires a sequence set and mailbox")}, sess.state, ActionNone
	}
	setStr, ok1 := imapparser.AtomOrQuoted(args[0])
	name, ok2 := imapparser.AtomOrQuoted(args[1])
	if !ok1 || !ok2 {
		return []string{tagged(tag, "BAD", "malformed arguments")}, sess.state, ActionNone
	}
	set, err := imapparser.ParseSeqSet(setStr)
	if err != nil {
		return []string{tagged(tag, "BAD", err.Error())}, sess.state, ActionNone
	}

	st := sess.deps.Store
	dstID, err := st.GetMailboxID(sess.state.UserID, name)
	if err != nil {
		return []string{tagged(tag, "NO", "[TRYCREATE] no such mailbox")}, sess.state, ActionNone
	}

	srcMsgs, err := st.Fetch(set, uidMode, sess.state.MailboxID)
	if err != nil {
		verb := "COPY"
		if move {
			verb = "MOVE"
		}
		return []string{tagged(tag, "NO", verb+" failed: "+err.Error())}, sess.state, ActionNone
	}
	srcUIDs := make([]uint32, len(srcMsgs))
	for i, m := range srcMsgs {
		srcUIDs[i] = uint32(m.UID)
	}

	uids, err := st.CopyMessages(set, uidMode, sess.state.MailboxID, dstID)
	if err != nil {
		verb := "COPY"
		if move {
			verb = "MOVE"
		}
		return []string{tagged(tag, "NO", verb+" failed: "+err.Error())}, sess.state, ActionNone
	}

	verb := "COPY"
	if move {
		verb = "MOVE"
		uidSet := make(imapparser.SeqSet, len(srcUIDs))
		for i, u := range srcUIDs {
			uidSet[i] = imapparser.SeqRange{Lo: u, Hi: u}
		}
		if _, err := st.DeleteMessages(sess.state.MailboxID, uidSet); err != nil {
			return []string{tagged(tag, "NO", "MOVE failed: "+err.Error())}, sess.state, ActionNone
		}
	}

	if len(uids) == 0 {
		return []string{tagged(tag, "OK", verb+" completed")}, sess.state, ActionNone
	}
	dstUIDs := make([]uint32, len(uids))
	for i, u := range uids {
		dstUIDs[i] = uint32(u)
	}
	sort.Slice(srcUIDs, func(i, j int) bool { return srcUIDs[i] < srcUIDs[j] })
	return []string{
		fmt.Sprintf("%s OK [COPYUID %d %s %s] %s completed",
			tag, time.Now().Unix(), imapparser.Compress(srcUIDs), imapparser.Compress(dstUIDs), verb),
	}, sess.state, ActionNone
}
