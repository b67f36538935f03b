package model

import "time"

type RateWindow struct {
	ID           string    `db:"id" json:"id"`
	CredentialID string    `db:"credential_id" json:"credentialId"`
	WindowStart  Timestamp `db:"window_start" json:"windowStart"`
	Count        int       `db:"count" json:"count"`
}

// Expired reports whether the window that started at WindowStart no longer
// covers now.
func (w *RateWindow) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(w.WindowStart.Time) >= window
}
