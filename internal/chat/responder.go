// Package chat routes free-text operator messages to the query path
// (snapshot, reports) or the dispatch path (actuator commands) and renders
// the outcome as a short reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"telemetry-bridge/internal/command"
	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/services"
	"telemetry-bridge/internal/stats"
)

// Kind tags what a Reply carries
type Kind string

const (
	KindReading Kind = "reading"
	KindStatus  Kind = "status"
	KindReport  Kind = "report"
	KindCommand Kind = "command"
	KindUnknown Kind = "unknown"
	KindError   Kind = "error"
)

// UnknownText is the fallback reply for text no intent understands
const UnknownText = "Sorry, I don't understand your message."

// Reply is the rendered answer plus the structured value behind it
type Reply struct {
	Kind     Kind                     `json:"kind"`
	Text     string                   `json:"text"`
	Status   []services.ChannelStatus `json:"status,omitempty"`
	Report   *services.ChannelReport  `json:"report,omitempty"`
	Dispatch *services.Dispatch       `json:"dispatch,omitempty"`
}

// Reports is the query side the responder reads from
type Reports interface {
	Latest(channel string) (services.ChannelStatus, error)
	Status() []services.ChannelStatus
	Report(ctx context.Context, channel string, rows int) (services.ChannelReport, error)
}

// Dispatcher is the command side the responder writes to
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd models.Command, source string) (services.Dispatch, error)
}

type intent struct {
	name    string
	pattern *regexp.Regexp
	handle  func(ctx context.Context, match []string) Reply
}

// Responder answers chat text
type Responder struct {
	reports    Reports
	dispatcher Dispatcher
	intents    []intent
	log        *slog.Logger
}

// aliases maps short chat words onto sensor channel ids
var aliases = map[string]string{
	"temp":  models.ChannelTemperature,
	"water": models.ChannelTemperature,
	"air":   models.ChannelAirTemperature,
	"lux":   models.ChannelLight,
}

// NewResponder builds a responder over the given query and command sides
func NewResponder(reports Reports, dispatcher Dispatcher, log *slog.Logger) *Responder {
	r := &Responder{
		reports:    reports,
		dispatcher: dispatcher,
		log:        log.With("component", "chat"),
	}

	words := make([]string, 0, len(aliases)+6)
	for _, ch := range models.SensorChannels() {
		words = append(words, regexp.QuoteMeta(ch.ID))
	}
	for alias := range aliases {
		words = append(words, regexp.QuoteMeta(alias))
	}
	channelWord := `(` + strings.Join(words, "|") + `)`

	r.intents = []intent{
		{
			name:    "status",
			pattern: regexp.MustCompile(`^(?:status|all)$`),
			handle:  r.status,
		},
		{
			name:    "report",
			pattern: regexp.MustCompile(`^report\s+` + channelWord + `(?:\s+(\d+))?$`),
			handle:  r.report,
		},
		{
			name:    "reading",
			pattern: regexp.MustCompile(`^` + channelWord + `$`),
			handle:  r.reading,
		},
	}
	return r
}

func resolveChannel(word string) string {
	if id, ok := aliases[word]; ok {
		return id
	}
	return word
}

// Respond answers one chat message. Query intents are tried first, then
// the command codec; anything else gets the fallback reply.
func (r *Responder) Respond(ctx context.Context, text string) Reply {
	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, in := range r.intents {
		if m := in.pattern.FindStringSubmatch(normalized); m != nil {
			return in.handle(ctx, m)
		}
	}

	cmd, ok, err := command.Decode(normalized)
	switch {
	case err != nil:
		return errorReply(fmt.Sprintf("Invalid command: %v", err))
	case ok:
		return r.dispatch(ctx, cmd)
	}

	r.log.Debug("No intent matched", "text", normalized)
	return Reply{Kind: KindUnknown, Text: UnknownText}
}

func errorReply(text string) Reply {
	return Reply{Kind: KindError, Text: text}
}

func (r *Responder) status(_ context.Context, _ []string) Reply {
	all := r.reports.Status()
	lines := make([]string, 0, len(all))
	for _, st := range all {
		lines = append(lines, formatStatus(st))
	}
	return Reply{Kind: KindStatus, Text: strings.Join(lines, "\n"), Status: all}
}

func (r *Responder) reading(_ context.Context, match []string) Reply {
	st, err := r.reports.Latest(resolveChannel(match[1]))
	if err != nil {
		return errorReply(err.Error())
	}
	return Reply{Kind: KindReading, Text: formatStatus(st), Status: []services.ChannelStatus{st}}
}

func (r *Responder) report(ctx context.Context, match []string) Reply {
	channel := resolveChannel(match[1])
	rows := 0
	if match[2] != "" {
		n, err := strconv.Atoi(match[2])
		if err != nil {
			return errorReply(fmt.Sprintf("Invalid row count %q", match[2]))
		}
		rows = n
	}

	rep, err := r.reports.Report(ctx, channel, rows)
	switch {
	case errors.Is(err, stats.ErrEmptyWindow):
		return errorReply(fmt.Sprintf("No usable %s readings in the requested window.", channel))
	case errors.Is(err, history.ErrUnavailable):
		return errorReply("History is unavailable right now, try again later.")
	case err != nil:
		r.log.Warn("Report failed", "channel", channel, "error", err)
		return errorReply("Could not build the report.")
	}
	return Reply{Kind: KindReport, Text: formatReport(rep), Report: &rep}
}

func (r *Responder) dispatch(ctx context.Context, cmd models.Command) Reply {
	d, err := r.dispatcher.Dispatch(ctx, cmd, "chat")
	if err != nil {
		var merr *command.MagnitudeError
		if errors.As(err, &merr) {
			return errorReply(fmt.Sprintf("Invalid command: %v", err))
		}
		return errorReply(fmt.Sprintf("Command for %s could not be sent.", cmd.Channel))
	}
	return Reply{Kind: KindCommand, Text: formatDispatch(d), Dispatch: &d}
}
