package archive

import (
	"context"
	"testing"

	"kakimail/internal/conf"
)

func TestNewDisabledReturnsNilArchiver(t *testing.T) {
	a, err := New(context.Background(), conf.ArchiveConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatalf("expected a nil Archiver when archiving is disabled")
	}
}

func TestPutOnNilArchiverIsNoop(t *testing.T) {
	var a *Archiver
	// Must not panic even though the receiver is nil and there is no client.
	a.Put(context.Background(), 1, "irrelevant data")
}
