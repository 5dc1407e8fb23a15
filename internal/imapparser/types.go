// Package imapparser recognizes IMAP command syntax: tags, atoms, quoted
// strings, literals, sequence sets, SEARCH keys and their typed arguments,
// and FETCH data-item expressions. It produces a structured *Pending (see Parse);
// turning that structure into store queries or wire responses is the
// session/handler and store packages' job, not this one's.
package imapparser

import "fmt"

// SeqRange is one item of a sequence set: n, n:m, n:*, *:m, or *.
// Star is represented by IsStarLo/IsStarHi; Lo/Hi hold the numeric bound
// when present. A bare "*" has both IsStarLo and IsStarHi true.
type SeqRange struct {
	Lo, Hi           uint32
	IsStarLo, IsStarHi bool
}

// Single reports whether the range names exactly one non-star number.
func (r SeqRange) Single() (uint32, bool) {
	if !r.IsStarLo && !r.IsStarHi && r.Lo == r.Hi {
		return r.Lo, true
	}
	return 0, false
}

// SeqSet is an ordered list of ranges, preserving the order the client sent
// them in (spec.md §4.B: "A set is represented as a list of ranges
// preserving order").
type SeqSet []SeqRange

// SearchKeyKind enumerates the SEARCH key vocabulary.
type SearchKeyKind int

const (
	SKAll SearchKeyKind = iota
	SKAnswered
	SKUnanswered
	SKDeleted
	SKUndeleted
	SKDraft
	SKUndraft
	SKFlagged
	SKUnflagged
	SKSeen
	SKUnseen
	SKKeyword
	SKUnkeyword
	SKBcc
	SKCc
	SKFrom
	SKTo
	SKSubject
	SKHeader
	SKBody
	SKText
	SKBefore
	SKOn
	SKSince
	SKSentBefore
	SKSentOn
	SKSentSince
	SKLarger
	SKSmaller
	SKNot
	SKOr
	SKAnd
	SKSeqSet
	SKUID
	SKNew
	SKOld
	SKRecent
)

// SearchKey is one node of the SEARCH boolean expression tree.
type SearchKey struct {
	Kind SearchKeyKind

	// String arguments (FROM/TO/SUBJECT/BODY/TEXT/KEYWORD/UNKEYWORD, and the
	// field name for HEADER).
	Field string // HEADER field name
	Str   string // the substring/keyword argument

	// Date arguments for BEFORE/ON/SINCE/SENTBEFORE/SENTON/SENTSINCE, as
	// Unix seconds at 00:00 UTC of that calendar date.
	DateDays int64

	// Numeric argument for LARGER/SMALLER.
	Size int64

	// Sequence set for SKSeqSet / SKUID.
	Set SeqSet

	// Children for NOT (Left only) and OR (Left, Right).
	Left, Right *SearchKey
}

// SearchReturnOpt enumerates RETURN option items.
type SearchReturnOpt int

const (
	RetMin SearchReturnOpt = iota
	RetMax
	RetAll
	RetCount
	RetSave
)

// SectionKind enumerates a FETCH BODY[...] section specifier.
type SectionKind int

const (
	SecNone SectionKind = iota // no section keyword, just a part path
	SecHeader
	SecHeaderFields
	SecHeaderFieldsNot
	SecText
	SecMime
)

// Section describes a BODY[<section>] / BINARY[<section>] specifier.
type Section struct {
	Part   []int // dotted part path, e.g. [1,2] for "1.2", empty for top level
	Kind   SectionKind
	Fields []string // field names for HEADER.FIELDS / HEADER.FIELDS.NOT
}

func (s Section) String() string {
	out := ""
	for i, p := range s.Part {
		if i > 0 {
			out += "."
		}
		out += fmt.Sprintf("%d", p)
	}
	switch s.Kind {
	case SecHeader:
		if out != "" {
			out += "."
		}
		out += "HEADER"
	case SecHeaderFields:
		if out != "" {
			out += "."
		}
		out += "HEADER.FIELDS"
	case SecHeaderFieldsNot:
		if out != "" {
			out += "."
		}
		out += "HEADER.FIELDS.NOT"
	case SecText:
		if out != "" {
			out += "."
		}
		out += "TEXT"
	case SecMime:
		if out != "" {
			out += "."
		}
		out += "MIME"
	}
	return out
}

// FetchItemKind enumerates the FETCH atoms.
type FetchItemKind int

const (
	FiUID FetchItemKind = iota
	FiFlags
	FiInternalDate
	FiRFC822Size
	FiEnvelope
	FiBodyStructure // BODYSTRUCTURE
	FiBodyNoArgs    // BODY with no section (non-extensible BODYSTRUCTURE)
	FiBodySection   // BODY[<section>]<partial>
	FiBinarySection // BINARY[<section>]
	FiBinarySize    // BINARY.SIZE[<section>]
)

// Partial describes a <start.count> byte-range suffix on BODY[]/BINARY[].
type Partial struct {
	Present bool
	Start   int64
	Count   int64
	HasCount bool
}

// FetchItem is one requested data item, after macro expansion.
type FetchItem struct {
	Kind    FetchItemKind
	Section Section
	Peek    bool // BODY.PEEK / BINARY.PEEK: do not set \Seen
	Partial Partial
}

// CommandVerb is the recognized IMAP verb, independent of connection state.
type CommandVerb string

const (
	VCapability   CommandVerb = "CAPABILITY"
	VNoop         CommandVerb = "NOOP"
	VLogout       CommandVerb = "LOGOUT"
	VStartTLS     CommandVerb = "STARTTLS"
	VLogin        CommandVerb = "LOGIN"
	VAuthenticate CommandVerb = "AUTHENTICATE"
	VSelect       CommandVerb = "SELECT"
	VExamine      CommandVerb = "EXAMINE"
	VCreate       CommandVerb = "CREATE"
	VDelete       CommandVerb = "DELETE"
	VRename       CommandVerb = "RENAME"
	VSubscribe    CommandVerb = "SUBSCRIBE"
	VUnsubscribe  CommandVerb = "UNSUBSCRIBE"
	VList         CommandVerb = "LIST"
	VLsub         CommandVerb = "LSUB"
	VNamespace    CommandVerb = "NAMESPACE"
	VStatus       CommandVerb = "STATUS"
	VAppend       CommandVerb = "APPEND"
	VIdle         CommandVerb = "IDLE"
	VClose        CommandVerb = "CLOSE"
	VUnselect     CommandVerb = "UNSELECT"
	VExpunge      CommandVerb = "EXPUNGE"
	VSearch       CommandVerb = "SEARCH"
	VFetch        CommandVerb = "FETCH"
	VStore        CommandVerb = "STORE"
	VCopy         CommandVerb = "COPY"
	VMove         CommandVerb = "MOVE"
	VUID          CommandVerb = "UID"
	VCheck        CommandVerb = "CHECK"
	VEnable       CommandVerb = "ENABLE"
)

// ParseError is returned for malformed input; callers turn it into a
// "<tag> BAD <reason>" response (spec.md §4.B).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }
