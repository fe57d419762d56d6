package store

import (
	"database/sql"
	"fmt"
)

// SignerRow is one provisioned writer identity: the persisted mapping from
// a user to the enclave key that signs on their behalf.
type SignerRow struct {
	UserID  string
	KeyRef  string
	Address string
	Key     string
}

// GetSigner returns the signer row for a user, or nil if none exists.
func (db *DB) GetSigner(userID string) (*SignerRow, error) {
	var s SignerRow
	err := db.conn.QueryRow(
		`SELECT user_id, key_ref, address, key FROM signers WHERE user_id = ?`,
		userID,
	).Scan(&s.UserID, &s.KeyRef, &s.Address, &s.Key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get signer: %w", err)
	}
	return &s, nil
}

// PutSigner persists a signer row. On conflict the existing row wins: two
// near-simultaneous provisioners for a brand-new user may both reach this
// point, and first-write-wins keeps the cache consistent either way.
func (db *DB) PutSigner(s *SignerRow) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		`INSERT INTO signers (user_id, key_ref, address, key) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		s.UserID, s.KeyRef, s.Address, s.Key,
	)
	if err != nil {
		return fmt.Errorf("put signer: %w", err)
	}
	return nil
}
