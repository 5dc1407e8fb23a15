package store

import (
	"database/sql"
	"fmt"
)

// GetMailboxID resolves a mailbox name to its id, materializing INBOX on
// first reference if it is absent (spec.md §3). Concurrent first-reference
// races for the same user's INBOX are deduplicated with singleflight so
// only one INSERT happens even if two connections ask at once.
func (s *Store) GetMailboxID(userID int64, name string) (int64, error) {
	s.mu.Lock()
	id, err := s.getMailboxIDLocked(userID, name)
	s.mu.Unlock()
	if err == nil || name != "INBOX" {
		return id, err
	}

	// Only INBOX is ever materialized on demand, so only it needs the
	// dedup key; everything else is a genuine not-found.
	key := fmt.Sprintf("inbox:%d", userID)
	v, err, _ := s.inbox.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if id, err := s.getMailboxIDLocked(userID, name); err == nil {
			return id, nil
		}
		res, err := s.db.Exec(`INSERT INTO mailboxes (name, user_id, flags) VALUES (?, ?, 0)`, name, userID)
		if err != nil {
			return int64(0), fmt.Errorf("create INBOX: %w", err)
		}
		return res.LastInsertId()
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (s *Store) getMailboxIDLocked(userID int64, name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM mailboxes WHERE user_id = ? AND name = ?`, userID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, sql.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("lookup mailbox: %w", err)
	}
	return id, nil
}

// CreateMailbox inserts a new mailbox row for userID. Returns an error if
// one of that name already exists for the user.
func (s *Store) CreateMailbox(userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exists int
	if err := s.db.QueryRow(`SELECT 1 FROM mailboxes WHERE user_id = ? AND name = ?`, userID, name).Scan(&exists); err == nil {
		return fmt.Errorf("mailbox already exists")
	}
	if _, err := s.db.Exec(`INSERT INTO mailboxes (name, user_id, flags) VALUES (?, ?, 0)`, name, userID); err != nil {
		return fmt.Errorf("create mailbox: %w", err)
	}
	return nil
}

// DeleteMailbox removes userID's mailbox called name and every Mail row it
// contains.
func (s *Store) DeleteMailbox(userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM mailboxes WHERE user_id = ? AND name = ?`, userID, name).Scan(&id); err != nil {
		return fmt.Errorf("no such mailbox")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete mailbox: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM mail WHERE mailbox_id = ?`, id); err != nil {
		return fmt.Errorf("delete mailbox contents: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM mailboxes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete mailbox: %w", err)
	}
	return tx.Commit()
}

// RenameMailbox changes a mailbox's name in place.
func (s *Store) RenameMailbox(userID int64, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE mailboxes SET name = ? WHERE user_id = ? AND name = ?`, newName, userID, oldName)
	if err != nil {
		return fmt.Errorf("rename mailbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename mailbox: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no such mailbox")
	}
	return nil
}

// ChangeMailboxSubscribed toggles the subscription bit for a named mailbox.
func (s *Store) ChangeMailboxSubscribed(userID int64, name string, subscribed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flags int
	var id int64
	if err := s.db.QueryRow(`SELECT id, flags FROM mailboxes WHERE user_id = ? AND name = ?`, userID, name).Scan(&id, &flags); err != nil {
		return fmt.Errorf("no such mailbox")
	}
	if subscribed {
		flags |= MailboxSubscribedBit
	} else {
		flags &^= MailboxSubscribedBit
	}
	if _, err := s.db.Exec(`UPDATE mailboxes SET flags = ? WHERE id = ?`, flags, id); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// MailboxInfo is one row of a user's mailbox listing.
type MailboxInfo struct {
	ID          int64
	Name        string
	Subscribed  bool
}

// GetMailboxNamesForUser lists every mailbox belonging to userID, creating
// (and returning) INBOX if the user has none yet.
func (s *Store) GetMailboxNamesForUser(userID int64) ([]MailboxInfo, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`SELECT id, name, flags FROM mailboxes WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	var out []MailboxInfo
	for rows.Next() {
		var m MailboxInfo
		var flags int
		if err := rows.Scan(&m.ID, &m.Name, &flags); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, fmt.Errorf("scan mailbox: %w", err)
		}
		m.Subscribed = flags&MailboxSubscribedBit != 0
		out = append(out, m)
	}
	rows.Close()
	s.mu.Unlock()

	if len(out) > 0 {
		return out, nil
	}

	id, err := s.GetMailboxID(userID, "INBOX")
	if err != nil {
		return nil, err
	}
	return []MailboxInfo{{ID: id, Name: "INBOX"}}, nil
}
