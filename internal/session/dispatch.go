package session

import (
	"fmt"

	"kakimail/internal/imapparser"
)

// HandlerFunc is the uniform command handler signature spec.md §9 asks for:
// a pure function over (tag, uidMode, args, continuation-line, State,
// store) returning (response lines, next State, post-action). cont is only
// populated on the second invocation of a command that requested
// ActionRedo; it is empty on the first call.
type HandlerFunc func(sess *Session, tag string, uidMode bool, args []imapparser.Node, cont string) ([]string, State, Action)

// stateRange describes which States a verb may run in; every table entry
// sets both min and max. Verbs that are NotAuthed-only (LOGIN, AUTHENTICATE)
// set max to NotAuthed, and verbs that require exactly Selected set min to
// Selected.
type stateRange struct {
	min, max Kind
	fn       HandlerFunc
}

var dispatchTable map[imapparser.CommandVerb]stateRange

func init() {
	const any0 = NotAuthed
	dispatchTable = map[imapparser.CommandVerb]stateRange{
		imapparser.VCapability:   {any0, Selected, handleCapability},
		imapparser.VNoop:         {any0, Selected, handleNoop},
		imapparser.VLogout:       {any0, Selected, handleLogout},
		imapparser.VStartTLS:     {any0, Selected, handleStartTLS},
		imapparser.VLogin:        {NotAuthed, NotAuthed, handleLogin},
		imapparser.VAuthenticate: {NotAuthed, NotAuthed, handleAuthenticate},
		imapparser.VSelect:       {Authed, Selected, handleSelect},
		imapparser.VExamine:      {Authed, Selected, handleExamine},
		imapparser.VCreate:       {Authed, Selected, handleCreate},
		imapparser.VDelete:       {Authed, Selected, handleDelete},
		imapparser.VRename:       {Authed, Selected, handleRename},
		imapparser.VSubscribe:    {Authed, Selected, handleSubscribe},
		imapparser.VUnsubscribe:  {Authed, Selected, handleUnsubscribe},
		imapparser.VList:         {Authed, Selected, handleList},
		imapparser.VLsub:         {Authed, Selected, handleLsub},
		imapparser.VNamespace:    {Authed, Selected, handleNamespace},
		imapparser.VStatus:       {Authed, Selected, handleStatus},
		imapparser.VAppend:       {Authed, Selected, handleAppend},
		imapparser.VIdle:         {Authed, Selected, handleIdle},
		imapparser.VClose:        {Selected, Selected, handleClose},
		imapparser.VUnselect:     {Selected, Selected, handleUnselect},
		imapparser.VExpunge:      {Selected, Selected, handleExpunge},
		imapparser.VSearch:       {Selected, Selected, handleSearch},
		imapparser.VFetch:        {Selected, Selected, handleFetch},
		imapparser.VStore:        {Selected, Selected, handleStore},
		imapparser.VCopy:         {Selected, Selected, handleCopy},
		imapparser.VMove:         {Selected, Selected, handleMove},
		imapparser.VCheck:        {Selected, Selected, handleCheck},
		imapparser.VEnable:       {Authed, Selected, handleEnable},
	}
}

// dispatch looks up and runs the handler for p, enforcing the state
// preconditions of spec.md §4.C's state table before calling it.
func (s *Session) dispatch(p *imapparser.Pending, cont string) ([]string, State, Action) {
	r, ok := dispatchTable[p.Verb]
	if !ok {
		return []string{fmt.Sprintf("%s BAD unknown command %s", p.Tag, p.Verb)}, s.state, ActionNone
	}
	if s.state.Kind < r.min || s.state.Kind > r.max {
		return []string{fmt.Sprintf("%s BAD bad state", p.Tag)}, s.state, ActionNone
	}
	return r.fn(s, p.Tag, p.UIDMode, p.Args, cont)
}

func tagged(tag, status, text string) string {
	return fmt.Sprintf("%s %s %s", tag, status, text)
}
