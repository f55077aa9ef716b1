package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := New(lvl)
		if err != nil {
			t.Fatalf("New(%q): %v", lvl, err)
		}
		_ = logger.Sync()
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
