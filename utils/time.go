// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// DefaultBatchName names a tag batch after the day it was generated
func DefaultBatchName(t time.Time) string {
	return "batch-" + t.UTC().Format(BatchNameDateLayout)
}
