package models

import "time"

// Reading is one accepted sensor value. A newer Reading on the same channel
// supersedes it; Readings are never mutated.
type Reading struct {
	Channel    string    `json:"channel"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// SensorEvent is a raw bus message before parsing
type SensorEvent struct {
	Channel    string
	RawValue   string
	ReceivedAt time.Time
}

// FeedMessage is the JSON object pushed to live viewers
type FeedMessage struct {
	Channel  string `json:"channel"`
	RawValue string `json:"rawValue"`
}

// Sample is one historical row returned by the history store.
// Value is NaN when the stored row held no usable number.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
