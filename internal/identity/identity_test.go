package identity

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestGetOrCreateIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	p := New(path)

	id1, isNew, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !isNew {
		t.Error("expected first call to report a new identity")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("expected a UUID identity, got %q", id1)
	}

	// Same process.
	id2, isNew, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if isNew {
		t.Error("expected second call to report existing identity")
	}
	if id2 != id1 {
		t.Errorf("expected stable identity, got %q then %q", id1, id2)
	}

	// Fresh provider over the same file simulates a restart.
	id3, isNew, err := New(path).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate after restart failed: %v", err)
	}
	if isNew || id3 != id1 {
		t.Errorf("expected identity to survive restart, got %q (new=%v)", id3, isNew)
	}
}

func TestExportRecoveryCode(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "identity.json"))

	id, _, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	code, err := p.ExportRecoveryCode()
	if err != nil {
		t.Fatalf("ExportRecoveryCode failed: %v", err)
	}
	if code != id {
		t.Errorf("expected recovery code to equal the identity, got %q vs %q", code, id)
	}
}

func TestImportRecoveryCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	p := New(path)

	if _, _, err := p.GetOrCreate(); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	imported := uuid.NewString()
	if err := p.ImportRecoveryCode(imported); err != nil {
		t.Fatalf("ImportRecoveryCode failed: %v", err)
	}

	id, isNew, err := New(path).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate after import failed: %v", err)
	}
	if isNew {
		t.Error("expected imported identity to be treated as existing")
	}
	if id != imported {
		t.Errorf("expected imported code %q, got %q", imported, id)
	}
}

func TestImportRejectsMalformedCode(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "identity.json"))

	if err := p.ImportRecoveryCode("not-a-uuid"); err == nil {
		t.Error("expected error for malformed recovery code")
	}
}
