package store

import (
	"database/sql"
	"fmt"
	"sort"

	"kakimail/internal/changebus"
	"kakimail/internal/imapparser"
)

// Expunge deletes every Deleted-flagged message in mailboxID (optionally
// restricted to uidRange), compacts the remaining seqnums, publishes one
// "* S EXPUNGE" per removed message in ascending order on the change bus,
// and returns the client-facing seqnums in the same order (spec.md §4.C:
// "already adjusted so that after the i-th report the remaining messages'
// seqnums are one less").
func (s *Store) Expunge(mailboxID int64, uidRange *imapparser.SeqSet) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin expunge: %w", err)
	}
	defer tx.Rollback()

	where := "mailbox_id = ? AND flags LIKE ?"
	args := []interface{}{mailboxID, LikePattern(FlagDeleted, true)}
	if uidRange != nil {
		maxUID, err := maxColumnTx(tx, mailboxID, "uid")
		if err != nil {
			return nil, err
		}
		frag, a := seqSetSQL("uid", *uidRange, maxUID)
		where += " AND (" + frag + ")"
		args = append(args, a...)
	}

	rows, err := tx.Query(`SELECT seqnum, uid FROM mail WHERE `+where+` ORDER BY seqnum`, args...)
	if err != nil {
		return nil, fmt.Errorf("expunge select: %w", err)
	}
	var seqnums, uids []int64
	for rows.Next() {
		var seq, uid int64
		if err := rows.Scan(&seq, &uid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("expunge scan: %w", err)
		}
		seqnums = append(seqnums, seq)
		uids = append(uids, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(seqnums) == 0 {
		return nil, tx.Commit()
	}

	for _, uid := range uids {
		if _, err := tx.Exec(`DELETE FROM mail WHERE uid = ?`, uid); err != nil {
			return nil, fmt.Errorf("expunge delete: %w", err)
		}
	}

	// Compact: every remaining message's seqnum decreases by the number of
	// removed seqnums less than it. Walking removed seqnums ascending and
	// decrementing one at a time gives the exact "one less per report"
	// semantics spec.md calls for.
	sort.Slice(seqnums, func(i, j int) bool { return seqnums[i] < seqnums[j] })
	reported := make([]int64, len(seqnums))
	for i, removed := range seqnums {
		adjusted := removed - int64(i)
		reported[i] = adjusted
		if _, err := tx.Exec(`UPDATE mail SET seqnum = seqnum - 1 WHERE mailbox_id = ? AND seqnum > ?`, mailboxID, adjusted); err != nil {
			return nil, fmt.Errorf("expunge compact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expunge: %w", err)
	}

	for _, seq := range reported {
		s.bus.Publish(mailboxID, changebus.Event(fmt.Sprintf("* %d EXPUNGE", seq)))
	}
	return reported, nil
}

// DeleteMessages removes every message in uidSet from mailboxID
// unconditionally (regardless of \Deleted), compacting seqnums and
// publishing "* S EXPUNGE" the same way Expunge does. Used by MOVE, which
// must remove the source copy once the destination copy succeeds even if
// the message was never flagged \Deleted (spec.md §4.C MOVE semantics).
func (s *Store) DeleteMessages(mailboxID int64, uidSet imapparser.SeqSet) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin delete messages: %w", err)
	}
	defer tx.Rollback()

	maxUID, err := maxColumnTx(tx, mailboxID, "uid")
	if err != nil {
		return nil, err
	}
	frag, args := seqSetSQL("uid", uidSet, maxUID)
	where := "mailbox_id = ? AND (" + frag + ")"
	args = append([]interface{}{mailboxID}, args...)

	rows, err := tx.Query(`SELECT seqnum, uid FROM mail WHERE `+where+` ORDER BY seqnum`, args...)
	if err != nil {
		return nil, fmt.Errorf("delete messages select: %w", err)
	}
	var seqnums, uids []int64
	for rows.Next() {
		var seq, uid int64
		if err := rows.Scan(&seq, &uid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("delete messages scan: %w", err)
		}
		seqnums = append(seqnums, seq)
		uids = append(uids, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(seqnums) == 0 {
		return nil, tx.Commit()
	}

	for _, uid := range uids {
		if _, err := tx.Exec(`DELETE FROM mail WHERE uid = ?`, uid); err != nil {
			return nil, fmt.Errorf("delete messages: %w", err)
		}
	}

	sort.Slice(seqnums, func(i, j int) bool { return seqnums[i] < seqnums[j] })
	reported := make([]int64, len(seqnums))
	for i, removed := range seqnums {
		adjusted := removed - int64(i)
		reported[i] = adjusted
		if _, err := tx.Exec(`UPDATE mail SET seqnum = seqnum - 1 WHERE mailbox_id = ? AND seqnum > ?`, mailboxID, adjusted); err != nil {
			return nil, fmt.Errorf("delete messages compact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete messages: %w", err)
	}

	for _, seq := range reported {
		s.bus.Publish(mailboxID, changebus.Event(fmt.Sprintf("* %d EXPUNGE", seq)))
	}
	return reported, nil
}

func maxColumnTx(tx *sql.Tx, mailboxID int64, column string) (int64, error) {
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(`+column+`) FROM mail WHERE mailbox_id = ?`, mailboxID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max %s: %w", column, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}
