// Package models holds the sensor-log sample shared by the uploader, client and dashboard.
package models

import "time"

// TimestampLayout is the wire format of Sample.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Sample is one sensor-log entry as stored by the remote JSON database.
type Sample struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	TDS         float64 `json:"tds"`
	PH          float64 `json:"ph"`
	ORP         float64 `json:"orp"`
}

// Time parses Timestamp. ok is false when the field is empty or malformed.
func (s Sample) Time() (t time.Time, ok bool) {
	t, err := time.Parse(TimestampLayout, s.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
