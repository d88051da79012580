// Package command encodes actuator commands into bus payloads and decodes
// chat text into commands. It performs no I/O.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"telemetry-bridge/internal/models"
)

// ErrUnknownCommand is matched by UnknownCommandError via errors.Is
var ErrUnknownCommand = errors.New("unknown command")

// UnknownCommandError is returned by DecodeStrict when no rule matches
type UnknownCommandError struct {
	Text string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Text)
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// MagnitudeError reports a magnitude that is missing, negative, fractional,
// not a number, or outside the channel's range. Magnitudes are never clamped.
type MagnitudeError struct {
	Channel string
	Raw     string
	Reason  string
}

func (e *MagnitudeError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("channel %s: %s", e.Channel, e.Reason)
	}
	return fmt.Sprintf("channel %s: magnitude %q %s", e.Channel, e.Raw, e.Reason)
}

// ChannelError is returned when a command targets a channel that cannot
// accept commands
type ChannelError struct {
	Channel string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %q does not accept commands", e.Channel)
}

var verbs = map[models.Action]string{
	models.ActionOn:       "on",
	models.ActionDuration: "on",
	models.ActionOff:      "off",
	models.ActionSet:      "config",
}

// Encode renders cmd as a wire string: "<verb>_<suffix>_<n>.0" when the
// command carries a magnitude, "<verb>_<suffix>" otherwise.
func Encode(cmd models.Command) (string, error) {
	ch, ok := models.LookupChannel(cmd.Channel)
	if !ok || ch.IsSensor() || ch.WireSuffix == "" {
		return "", &ChannelError{Channel: cmd.Channel}
	}
	verb, ok := verbs[cmd.Action]
	if !ok {
		return "", fmt.Errorf("channel %s: unsupported action %q", cmd.Channel, cmd.Action)
	}

	switch cmd.Action {
	case models.ActionOff:
		if cmd.Magnitude != nil {
			return "", &MagnitudeError{Channel: cmd.Channel, Reason: "off takes no magnitude"}
		}
	case models.ActionDuration, models.ActionSet:
		if cmd.Magnitude == nil {
			return "", &MagnitudeError{Channel: cmd.Channel, Reason: "magnitude is required for " + string(cmd.Action)}
		}
	}

	if cmd.Magnitude == nil {
		return verb + "_" + ch.WireSuffix, nil
	}

	n, err := checkMagnitude(ch, *cmd.Magnitude, strconv.FormatFloat(*cmd.Magnitude, 'f', -1, 64))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%d.0", verb, ch.WireSuffix, n), nil
}

func checkMagnitude(ch models.Channel, v float64, raw string) (int64, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, &MagnitudeError{Channel: ch.ID, Raw: raw, Reason: "is not a number"}
	case v < 0:
		return 0, &MagnitudeError{Channel: ch.ID, Raw: raw, Reason: "is negative"}
	case v != math.Trunc(v):
		return 0, &MagnitudeError{Channel: ch.ID, Raw: raw, Reason: "is not a whole number"}
	case !ch.InRange(v):
		return 0, &MagnitudeError{Channel: ch.ID, Raw: raw,
			Reason: fmt.Sprintf("is outside %g..%g", ch.Min, ch.Max)}
	}
	return int64(v), nil
}
