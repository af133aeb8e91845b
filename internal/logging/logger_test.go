package logging_test

import (
	"testing"

	"github.com/Tiliavir/hamster-panel/internal/logging"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := logging.New(level)
		if err != nil {
			t.Errorf("New(%q): %v", level, err)
			continue
		}
		_ = log.Sync()
	}
	if _, err := logging.New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
