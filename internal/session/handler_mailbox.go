package session

import (
	"fmt"
	"time"

	"kakimail/internal/imapparser"
	"kakimail/internal/store"
)

// handleSelect implements SELECT and handleExamine implements EXAMINE
// (spec.md §4.C). The only difference is whether the resulting Selected
// state is read-only: both call selectMailbox, handleSelect opening the
// mailbox read-write and handleExamine read-only.
func handleSelect(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return selectMailbox(sess, tag, args, false)
}

func handleExamine(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return selectMailbox(sess, tag, args, true)
}

func selectMailbox(sess *Session, tag string, args []imapparser.Node, readOnly bool) ([]string, State, Action) {
	if len(args) != 1 {
		return []string{tagged(tag, "BAD", "mailbox name required")}, sess.state, ActionNone
	}
	name, ok := imapparser.AtomOrQuoted(args[0])
	if !ok {
		return []string{tagged(tag, "BAD", "mailbox name required")}, sess.state, ActionNone
	}

	st := sess.deps.Store
	mailboxID, err := st.GetMailboxID(sess.state.UserID, name)
	if err != nil {
		return []string{tagged(tag, "NO", "no such mailbox")}, sess.state, ActionNone
	}

	exists, err := st.MailCount(&mailboxID)
	if err != nil {
		return []string{tagged(tag, "NO", "SELECT failed")}, sess.state, ActionNone
	}
	var maxUID int64
	fetched, err := st.Fetch(imapparser.SeqSet{{IsStarLo: true, IsStarHi: true}}, true, mailboxID)
	if err == nil && len(fetched) > 0 {
		maxUID = fetched[len(fetched)-1].UID
	}

	verb := "SELECT"
	permFlags := "* OK [PERMANENTFLAGS (\\Deleted \\Seen \\*)]"
	rw := "[READ-WRITE]"
	if readOnly {
		verb = "EXAMINE"
		permFlags = "* OK [PERMANENTFLAGS ()] No permanent flags permitted"
		rw = "[READ-ONLY]"
	}

	next := sess.state
	next.Kind = Selected
	next.MailboxID = mailboxID
	next.MailboxName = name
	next.ReadOnly = readOnly
	next.UIDValidity = time.Now().Unix()

	return []string{
		fmt.Sprintf("* %d EXISTS", exists),
		fmt.Sprintf("* OK [UIDVALIDITY %d]", next.UIDValidity),
		fmt.Sprintf("* OK [UIDNEXT %d]", maxUID+1),
		"* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)",
		fmt.Sprintf("* LIST () \"/\" %s", name),
		permFlags,
		tagged(tag, "OK", rw+" "+verb+" completed"),
	}, next, ActionNone
}

func handleCreate(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	name, ok := mailboxNameArg(args)
	if !ok {
		return []string{tagged(tag, "BAD", "mailbox name required")}, sess.state, ActionNone
	}
	if err := sess.deps.Store.CreateMailbox(sess.state.UserID, name); err != nil {
		return []string{tagged(tag, "NO", "CREATE failed: "+err.Error())}, sess.state, ActionNone
	}
	return []string{tagged(tag, "OK", "CREATE completed")}, sess.state, ActionNone
}

func handleDelete(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	name, ok := mailboxNameArg(args)
	if !ok {
		return []string{tagged(tag, "BAD", "mailbox name required")}, sess.state, ActionNone
	}
	if err := sess.deps.Store.DeleteMailbox(sess.state.UserID, name); err != nil {
		return []string{tagged(tag, "NO", "DELETE failed: "+err.Error())}, sess.state, ActionNone
	}
	return []string{tagged(tag, "OK", "DELETE completed")}, sess.state, ActionNone
}

func handleRename(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) != 2 {
		return []string{tagged(tag, "BAD", "RENAME requires two mailbox names")}, sess.state, ActionNone
	}
	oldName, ok1 := imapparser.AtomOrQuoted(args[0])
	newName, ok2 := imapparser.AtomOrQuoted(args[1])
	if !ok1 || !ok2 {
		return []string{tagged(tag, "BAD", "RENAME requires two mailbox names")}, sess.state, ActionNone
	}
	if err := sess.deps.Store.RenameMailbox(sess.state.UserID, oldName, newName); err != nil {
		return []string{tagged(tag, "NO", "RENAME failed: "+err.Error())}, sess.state, ActionNone
	}
	return []string{tagged(tag, "OK", "RENAME completed")}, sess.state, ActionNone
}

func handleSubscribe(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return changeSubscribed(sess, tag, args, true)
}

func handleUnsubscribe(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return changeSubscribed(sess, tag, args, false)
}

func changeSubscribed(sess *Session, tag string, args []imapparser.Node, subscribed bool) ([]string, State, Action) {
	name, ok := mailboxNameArg(args)
	if !ok {
		return []string{tagged(tag, "BAD", "mailbox name required")}, sess.state, ActionNone
	}
	verb := "SUBSCRIBE"
	if !subscribed {
		verb = "UNSUBSCRIBE"
	}
	if err := sess.deps.Store.ChangeMailboxSubscribed(sess.state.UserID, name, subscribed); err != nil {
		return []string{tagged(tag, "NO", verb+" failed: "+err.Error())}, sess.state, ActionNone
	}
	return []string{tagged(tag, "OK", verb+" completed")}, sess.state, ActionNone
}

func handleList(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return listMailboxes(sess, tag, args, false)
}

func handleLsub(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	return listMailboxes(sess, tag, args, true)
}

func listMailboxes(sess *Session, tag string, args []imapparser.Node, subscribedOnly bool) ([]string, State, Action) {
	if len(args) != 2 {
		return []string{tagged(tag, "BAD", "LIST requires reference and pattern")}, sess.state, ActionNone
	}
	ref, ok1 := imapparser.AtomOrQuoted(args[0])
	pat, ok2 := imapparser.AtomOrQuoted(args[1])
	if !ok1 || !ok2 {
		return []string{tagged(tag, "BAD", "LIST requires string arguments")}, sess.state, ActionNone
	}
	verb := "LIST"
	if subscribedOnly {
		verb = "LSUB"
	}
	if pat == "" {
		// An empty pattern queries the hierarchy delimiter only.
		return []string{
			fmt.Sprintf(`* %s (\Noselect) "/" ""`, verb),
			tagged(tag, "OK", verb+" completed"),
		}, sess.state, ActionNone
	}

	boxes, err := sess.deps.Store.GetMailboxNamesForUser(sess.state.UserID)
	if err != nil {
		return []string{tagged(tag, "NO", verb+" failed")}, sess.state, ActionNone
	}
	pattern := canonicalPattern(ref, pat)

	var lines []string
	for _, b := range boxes {
		if subscribedOnly && !b.Subscribed {
			continue
		}
		if matchMailboxPattern(b.Name, pattern) {
			lines = append(lines, fmt.Sprintf(`* %s () "/" %s`, verb, b.Name))
		}
	}
	lines = append(lines, tagged(tag, "OK", verb+" completed"))
	return lines, sess.state, ActionNone
}

func handleNamespace(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	return []string{
		`* NAMESPACE (("" "/")) NIL NIL`,
		tagged(tag, "OK", "NAMESPACE completed"),
	}, sess.state, ActionNone
}

// handleStatus implements STATUS <mailbox> (<items>) without SELECTing it
// (SPEC_FULL §4 supplemented feature).
func handleStatus(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) != 2 {
		return []string{tagged(tag, "BAD", "STATUS requires a mailbox and item list")}, sess.state, ActionNone
	}
	name, ok := imapparser.AtomOrQuoted(args[0])
	lst, ok2 := args[1].(imapparser.List)
	if !ok || !ok2 {
		return []string{tagged(tag, "BAD", "STATUS requires a mailbox and item list")}, sess.state, ActionNone
	}

	st := sess.deps.Store
	mailboxID, err := st.GetMailboxID(sess.state.UserID, name)
	if err != nil {
		return []string{tagged(tag, "NO", "no such mailbox")}, sess.state, ActionNone
	}

	var parts []string
	for _, n := range lst {
		item, ok := imapparser.AtomOrQuoted(n)
		if !ok {
			continue
		}
		switch item {
		case "MESSAGES":
			count, _ := st.MailCount(&mailboxID)
			parts = append(parts, fmt.Sprintf("MESSAGES %d", count))
		case "UIDNEXT":
			fetched, _ := st.Fetch(imapparser.SeqSet{{IsStarLo: true, IsStarHi: true}}, true, mailboxID)
			var maxUID int64
			if len(fetched) > 0 {
				maxUID = fetched[len(fetched)-1].UID
			}
			parts = append(parts, fmt.Sprintf("UIDNEXT %d", maxUID+1))
		case "UIDVALIDITY":
			parts = append(parts, fmt.Sprintf("UIDVALIDITY %d", time.Now().Unix()))
		case "UNSEEN":
			count, _ := st.MailCountWithFlags(mailboxID, []store.FlagPredicate{{Flag: store.FlagSeen, On: false}})
			parts = append(parts, fmt.Sprintf("UNSEEN %d", count))
		case "RECENT":
			parts = append(parts, "RECENT 0")
		}
	}

	return []string{
		fmt.Sprintf("* STATUS %s (%s)", name, joinSpace(parts)),
		tagged(tag, "OK", "STATUS completed"),
	}, sess.state, ActionNone
}

func handleClose(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	if !sess.state.ReadOnly {
		archiveDeletedMessages(sess)
		_, _ = sess.deps.Store.Expunge(sess.state.MailboxID, nil)
	}
	next := sess.state
	next.Kind = Authed
	next.MailboxID = 0
	next.MailboxName = ""
	next.ReadOnly = false
	return []string{tagged(tag, "OK", "CLOSE completed")}, next, ActionNone
}

func handleUnselect(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	next := sess.state
	next.Kind = Authed
	next.MailboxID = 0
	next.MailboxName = ""
	next.ReadOnly = false
	return []string{tagged(tag, "OK", "UNSELECT completed")}, next, ActionNone
}

func handleCheck(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	return []string{tagged(tag, "OK", "CHECK completed")}, sess.state, ActionNone
}

// handleEnable accepts and acknowledges extension names without enabling
// anything unsupported (SPEC_FULL §4: CONDSTORE/QRESYNC are non-goals).
func handleEnable(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	var names []string
	for _, n := range args {
		if s, ok := imapparser.AtomOrQuoted(n); ok {
			names = append(names, s)
		}
	}
	lines := []string{tagged(tag, "OK", "ENABLE completed")}
	if len(names) > 0 {
		lines = append([]string{"* ENABLED"}, lines...)
	}
	return lines, sess.state, ActionNone
}

func mailboxNameArg(args []imapparser.Node) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	return imapparser.AtomOrQuoted(args[0])
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
