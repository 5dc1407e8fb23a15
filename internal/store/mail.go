package store

import (
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kakimail/internal/changebus"
	"kakimail/internal/imapparser"
)

// Mail is one message as handed to the store by a handler or the delivery
// API, before uid/seqnum/mailbox assignment.
type Mail struct {
	Sender     string
	Recipients string
	Data       string
}

// CheckUser verifies name/password against the stored bcrypt hash and
// returns the user id on success.
func (s *Store) CheckUser(name, password string) (int64, bool) {
	s.mu.Lock()
	var id int64
	var hash string
	err := s.db.QueryRow(`SELECT id, password FROM users WHERE name = ?`, name).Scan(&id, &hash)
	s.mu.Unlock()
	if err != nil {
		return 0, false
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, false
	}
	return id, true
}

// CreateUser inserts a new user row with an already-hashed password,
// returning its id. Provisioning users is out of IMAP's own command set
// (spec.md has no CREATE-USER verb); this is the seam an external admin
// tool or setup script calls into.
func (s *Store) CreateUser(name, passwordHash string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`INSERT INTO users (name, password) VALUES (?, ?)`, name, passwordHash)
	if err != nil {
		return 0, false
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false
	}
	return id, true
}

// UserIDByName resolves a username to its id without checking a password,
// for the delivery API (spec.md §1: the SMTP collaborator authenticates
// itself to the delivery API via JWT, not per-message credentials, so it
// only needs to know which user's INBOX to write to).
func (s *Store) UserIDByName(name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id int64
	if err := s.db.QueryRow(`SELECT id FROM users WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, false
	}
	return id, true
}

// nextUIDLocked returns max(uid)+1 across the whole store, 1 if empty.
// Caller must hold s.mu.
func (s *Store) nextUIDLocked() (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(uid) FROM mail`).Scan(&max); err != nil {
		return 0, fmt.Errorf("next uid: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

// nextSeqnumLocked returns max(seqnum)+1 within mailboxID, 1 if empty.
// Caller must hold s.mu.
func (s *Store) nextSeqnumLocked(mailboxID int64) (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(seqnum) FROM mail WHERE mailbox_id = ?`, mailboxID).Scan(&max); err != nil {
		return 0, fmt.Errorf("next seqnum: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

// Replicate inserts mail into mailboxID with a fresh uid/seqnum, returning
// the assigned uid, and publishes "* <seqnum> EXISTS" on the change bus.
// internalDate defaults to now when zero.
func (s *Store) Replicate(m Mail, mailboxID int64, flags string, internalDate time.Time) (int64, error) {
	if internalDate.IsZero() {
		internalDate = time.Now()
	}
	if flags == "" {
		flags = "00000"
	}

	s.mu.Lock()
	uid, err := s.nextUIDLocked()
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	seq, err := s.nextSeqnumLocked(mailboxID)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	_, err = s.db.Exec(
		`INSERT INTO mail (uid, seqnum, date, sender, recipients, data, mailbox_id, flags) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, seq, imapparser.FormatStoreDate(internalDate), m.Sender, m.Recipients, m.Data, mailboxID, flags,
	)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("insert mail: %w", err)
	}

	s.bus.Publish(mailboxID, changebus.Event(fmt.Sprintf("* %d EXISTS", seq)))
	return uid, nil
}

// MailCount returns the number of messages, in mailboxID if non-nil or
// across the whole store otherwise.
func (s *Store) MailCount(mailboxID *int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	var err error
	if mailboxID != nil {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM mail WHERE mailbox_id = ?`, *mailboxID).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM mail`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("mail count: %w", err)
	}
	return n, nil
}

// FlagPredicate is one (flag, wanted-state) pair for MailCountWithFlags,
// e.g. {FlagSeen, false} for "unseen count".
type FlagPredicate struct {
	Flag Flag
	On   bool
}

// MailCountWithFlags counts messages in mailboxID whose flags bitmap
// matches every predicate, used by STATUS UNSEEN.
func (s *Store) MailCountWithFlags(mailboxID int64, preds []FlagPredicate) (int64, error) {
	where := "mailbox_id = ?"
	args := []interface{}{mailboxID}
	for _, p := range preds {
		where += " AND flags LIKE ?"
		args = append(args, LikePattern(p.Flag, p.On))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mail WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("mail count with flags: %w", err)
	}
	return n, nil
}

// FetchedMail is one matched row, in the shape handlers need to build
// FETCH response items.
type FetchedMail struct {
	Seqnum int64
	UID    int64
	Date   time.Time
	Data   string
	Flags  string
}

// Fetch returns every message in mailboxID matched by set (over uid if
// uidMode, over seqnum otherwise), ordered by seqnum.
func (s *Store) Fetch(set imapparser.SeqSet, uidMode bool, mailboxID int64) ([]FetchedMail, error) {
	column := "seqnum"
	if uidMode {
		column = "uid"
	}

	s.mu.Lock()
	maxVal, err := s.maxColumnLocked(mailboxID, column)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	where, args := seqSetSQL(column, set, maxVal)
	rows, err := s.db.Query(
		`SELECT seqnum, uid, date, data, flags FROM mail WHERE mailbox_id = ? AND (`+where+`) ORDER BY seqnum`,
		append([]interface{}{mailboxID}, args...)...,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	var out []FetchedMail
	for rows.Next() {
		var m FetchedMail
		var dateStr string
		if err := rows.Scan(&m.Seqnum, &m.UID, &dateStr, &m.Data, &m.Flags); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("scan fetch row: %w", err)
		}
		if t, err := imapparser.ParseStoreDate(dateStr); err == nil {
			m.Date = t
		}
		out = append(out, m)
	}
	s.mu.Unlock()
	return out, rows.Err()
}

// SetFlags overwrites the flags bitmap for a single message identified by
// uid, used by STORE after computing the new bitmap with ApplyFlagOp.
func (s *Store) SetFlags(uid int64, flags string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE mail SET flags = ? WHERE uid = ?`, flags, uid); err != nil {
		return fmt.Errorf("set flags: %w", err)
	}
	return nil
}

// CopyMessages duplicates every message in set (over uid if uidMode) from
// srcMailboxID into dstMailboxID, each with a fresh uid/seqnum, and returns
// the newly assigned uids in seqnum order. Used by COPY and MOVE.
func (s *Store) CopyMessages(set imapparser.SeqSet, uidMode bool, srcMailboxID, dstMailboxID int64) ([]int64, error) {
	msgs, err := s.Fetch(set, uidMode, srcMailboxID)
	if err != nil {
		return nil, err
	}
	var uids []int64
	for _, m := range msgs {
		var sender, recipients string
		s.mu.Lock()
		_ = s.db.QueryRow(`SELECT sender, recipients FROM mail WHERE uid = ?`, m.UID).Scan(&sender, &recipients)
		s.mu.Unlock()
		uid, err := s.Replicate(Mail{Sender: sender, Recipients: recipients, Data: m.Data}, dstMailboxID, m.Flags, m.Date)
		if err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (s *Store) maxColumnLocked(mailboxID int64, column string) (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(`+column+`) FROM mail WHERE mailbox_id = ?`, mailboxID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max %s: %w", column, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}
