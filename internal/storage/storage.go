package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

// lookbackDays bounds the search for an open fact left behind on an
// earlier day (a session that crossed midnight or a crashed client).
const lookbackDays = 7

// DefaultBaseDir returns the default data directory (~/.hamster-panel/facts).
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".hamster-panel", "facts"), nil
}

// DayFilePath returns the path for the given date's JSON file.
func DayFilePath(base string, t time.Time) string {
	return filepath.Join(base, t.Format("2006"), t.Format("01"), t.Format("02")+".json")
}

// LoadDay loads the DayFile for the given date. Returns an empty DayFile if not found.
func LoadDay(base string, t time.Time) (model.DayFile, error) {
	path := DayFilePath(base, t)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.DayFile{Date: t.Format("2006-01-02"), Facts: []model.Fact{}}, nil
	}
	if err != nil {
		return model.DayFile{}, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var df model.DayFile
	if err := json.Unmarshal(data, &df); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.DayFile{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return df, nil
}

// SaveDay atomically writes a DayFile for the given date.
func SaveDay(base string, t time.Time, df model.DayFile) error {
	path := DayFilePath(base, t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return writeAtomic(path, data)
}

// FindOpenFact searches today and the previous days, most recent first, for
// a fact without an end. It returns the fact and the day file it lives in.
func FindOpenFact(base string, now time.Time) (*model.Fact, time.Time, error) {
	for i := 0; i < lookbackDays; i++ {
		day := now.AddDate(0, 0, -i)
		df, err := LoadDay(base, day)
		if err != nil {
			return nil, time.Time{}, err
		}
		for j := len(df.Facts) - 1; j >= 0; j-- {
			if df.Facts[j].End == nil {
				return &df.Facts[j], day, nil
			}
		}
	}
	return nil, time.Time{}, nil
}

// UpdateFact replaces or appends a fact in the DayFile for the given date.
func UpdateFact(base string, day time.Time, fact model.Fact) error {
	df, err := LoadDay(base, day)
	if err != nil {
		return err
	}
	for i, f := range df.Facts {
		if f.ID == fact.ID {
			df.Facts[i] = fact
			return SaveDay(base, day, df)
		}
	}
	df.Facts = append(df.Facts, fact)
	return SaveDay(base, day, df)
}

// NextID hands out increasing fact ids from a counter file in base.
func NextID(base string) (int64, error) {
	path := filepath.Join(base, "last_id")
	var last int64
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("storage error reading %s: %w", path, err)
	default:
		last, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt id counter %s: %w", path, err)
		}
	}
	next := last + 1
	if err := os.MkdirAll(base, 0o700); err != nil {
		return 0, fmt.Errorf("storage error creating directories: %w", err)
	}
	if err := writeAtomic(path, []byte(strconv.FormatInt(next, 10)+"\n")); err != nil {
		return 0, err
	}
	return next, nil
}

// writeAtomic writes to a temp file then renames it over path.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}
