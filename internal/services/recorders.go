package services

import "time"

// IngestRecorder counts readings by outcome
type IngestRecorder interface {
	ReadingAccepted(channel string)
	ReadingRejected(channel string)
}

// CommandRecorder counts dispatched commands by outcome
type CommandRecorder interface {
	CommandPublished(channel string)
	CommandFailed(channel, stage string)
}

// ReportRecorder counts report requests and times history fetches
type ReportRecorder interface {
	ReportServed(outcome string)
	HistoryFetched(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ReadingAccepted(string) {}
func (nopRecorder) ReadingRejected(string) {}
func (nopRecorder) CommandPublished(string) {}
func (nopRecorder) CommandFailed(string, string) {}
func (nopRecorder) ReportServed(string) {}
func (nopRecorder) HistoryFetched(time.Duration) {}
