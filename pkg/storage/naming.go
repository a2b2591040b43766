package storage

import (
	"fmt"
	"time"
)

const (
	// sessionLayout is the fixed-width date-time part of session file names.
	sessionLayout = "20060102_150405"
	// Extension of session files.
	Extension = ".csv"
	// maxNameAttempts bounds suffixed retries when a name is taken.
	maxNameAttempts = 100
)

// Header is the first row of every session file.
var Header = []string{"Timestamp(ns)", "Value", "MotorActive"}

// SessionName derives a session file name from wall-clock time.
func SessionName(t time.Time) string {
	return t.Format(sessionLayout) + Extension
}

// suffixedName returns the n-th alternative for a name taken in the same second.
func suffixedName(t time.Time, n int) string {
	if n == 0 {
		return SessionName(t)
	}
	return fmt.Sprintf("%s_%d%s", t.Format(sessionLayout), n, Extension)
}
