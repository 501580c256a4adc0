package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// mapError translates driver errors into persistence sentinels. The driver
// error stays in the chain for logging.
func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if key, ok := s.d.uniqueViolation(err); ok {
		switch {
		case strings.Contains(key, "cell_day_claims"):
			return fmt.Errorf("%w: %w", persistence.ErrCellSlotTaken, err)
		case strings.Contains(key, "user_day_claims"):
			return fmt.Errorf("%w: %w", persistence.ErrUserDayTaken, err)
		}
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	}
	if containsAny(err.Error(), []string{
		"FOREIGN KEY constraint failed",
		"CHECK constraint failed",
		"violates foreign key constraint",
		"violates check constraint",
		"a foreign key constraint fails",
		"Check constraint",
	}) {
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	}
	return err
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// timestampLayout is fixed width so stored values sort and compare as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

func parseOptionalTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(value string) (scheduler.Date, error) {
	d, err := scheduler.ParseDate(value)
	if err != nil {
		return scheduler.Date{}, fmt.Errorf("sqlstore: %w", err)
	}
	return d, nil
}

func optionalString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
