// Package identity supplies the stable user identifier that scopes every
// local query and remote request. The identifier is a locally generated
// UUID persisted to a small JSON state file; exported verbatim it doubles
// as the "recovery code" that moves data association between devices.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// state is the on-disk identity record.
type state struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider persists the user identifier at a fixed path.
type Provider struct {
	path string
}

// New creates a provider backed by the state file at path.
func New(path string) *Provider {
	return &Provider{path: path}
}

// GetOrCreate returns the persisted identifier, generating and persisting
// a new one when none exists. isNew reports whether an identifier was just
// created. Repeated calls, within a process or across restarts, return the
// same id.
func (p *Provider) GetOrCreate() (id string, isNew bool, err error) {
	st, err := p.read()
	if err != nil {
		return "", false, err
	}
	if st != nil {
		return st.UserID, false, nil
	}

	st = &state{
		UserID:    uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.write(st); err != nil {
		return "", false, err
	}
	return st.UserID, true, nil
}

// ExportRecoveryCode returns the current identifier verbatim, framed as a
// portable credential. Fails if no identity exists yet.
func (p *Provider) ExportRecoveryCode() (string, error) {
	st, err := p.read()
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", fmt.Errorf("no identity to export")
	}
	return st.UserID, nil
}

// ImportRecoveryCode overwrites the local identifier with code and resets
// the creation timestamp. This is destructive to the association between
// local data and identity: rows keyed to the old id become invisible to
// queries until a sync-down repopulates the new scope. Callers are
// expected to wipe the local store first, or accept the orphaned rows.
func (p *Provider) ImportRecoveryCode(code string) error {
	if _, err := uuid.Parse(code); err != nil {
		return fmt.Errorf("invalid recovery code: %w", err)
	}

	st := &state{
		UserID:    code,
		CreatedAt: time.Now().UTC(),
	}
	return p.write(st)
}

func (p *Provider) read() (*state, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse identity file %s: %w", p.path, err)
	}
	if st.UserID == "" {
		return nil, fmt.Errorf("identity file %s has no user_id", p.path)
	}
	return &st, nil
}

// write persists the state atomically via a temp file rename, so a crash
// mid-write cannot leave a truncated identity behind.
func (p *Provider) write(st *state) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
