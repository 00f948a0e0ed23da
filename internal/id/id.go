package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateFormat = "20060102"

// FormatResultID returns a result ID like "REC-20240120-0001".
// Sequence numbers restart at 1 for every reconciliation date, which keeps
// reruns of the same partition byte-for-byte identical.
func FormatResultID(date time.Time, seq int) string {
	return fmt.Sprintf("REC-%s-%04d", date.Format(dateFormat), seq)
}

// FormatExceptionID returns an exception ID like "EXC-20240120-0001".
func FormatExceptionID(date time.Time, seq int) string {
	return fmt.Sprintf("EXC-%s-%04d", date.Format(dateFormat), seq)
}

// Parse splits an ID like "REC-20240120-0001" into its prefix, date and
// sequence number.
func Parse(id string) (prefix string, date time.Time, seq int, err error) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return "", time.Time{}, 0, fmt.Errorf("invalid ID format: %q", id)
	}

	date, err = time.Parse(dateFormat, parts[1])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("invalid date in ID %q: %w", id, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("invalid sequence in ID %q: %w", id, err)
	}

	return parts[0], date, seq, nil
}
