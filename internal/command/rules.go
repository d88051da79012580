package command

import (
	"regexp"
	"strconv"
	"strings"

	"telemetry-bridge/internal/models"
)

// rule maps one chat text shape onto a Command. Rules are evaluated in
// table order and the first match wins.
type rule struct {
	name    string
	pattern *regexp.Regexp
	build   func(match []string) (models.Command, error)
}

// magnitudeArg captures what follows a command word: either a token glued
// to it that starts like a number ("time20", "pump-5") or any token after
// whitespace ("pump x"). Words that merely begin with a command word
// ("timeline") match neither.
const magnitudeArg = `(?:\s*([-+]?\d\S*)|\s+(\S+))`

// decimalMagnitude is the only accepted magnitude syntax
var decimalMagnitude = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?$`)

var rules = []rule{
	{
		name:    "led_timer",
		pattern: regexp.MustCompile(`^time` + magnitudeArg + `$`),
		build:   timed(models.ActionDuration, models.ChannelLED),
	},
	{
		name:    "pump_timer",
		pattern: regexp.MustCompile(`^pump` + magnitudeArg + `$`),
		build:   timed(models.ActionDuration, models.ChannelPump),
	},
	{
		name:    "sampling_interval",
		pattern: regexp.MustCompile(`^set` + magnitudeArg + `$`),
		build:   timed(models.ActionSet, models.ChannelInterval),
	},
	{
		name:    "switch",
		pattern: regexp.MustCompile(`^(on|off)\s+(pump|led|light)$`),
		build:   switched,
	},
}

func timed(action models.Action, channel string) func([]string) (models.Command, error) {
	return func(match []string) (models.Command, error) {
		ch, _ := models.LookupChannel(channel)
		raw := match[1]
		if raw == "" {
			raw = match[2]
		}
		if !decimalMagnitude.MatchString(raw) {
			return models.Command{}, &MagnitudeError{Channel: channel, Raw: raw, Reason: "is not a number"}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Command{}, &MagnitudeError{Channel: channel, Raw: raw, Reason: "is not a number"}
		}
		n, err := checkMagnitude(ch, v, raw)
		if err != nil {
			return models.Command{}, err
		}
		return models.Command{
			Channel:   channel,
			Action:    action,
			Magnitude: models.Magnitude(float64(n)),
		}, nil
	}
}

func switched(match []string) (models.Command, error) {
	channel := channelForSuffix(match[2])
	action := models.ActionOn
	if match[1] == "off" {
		action = models.ActionOff
	}
	return models.Command{Channel: channel, Action: action}, nil
}

func channelForSuffix(suffix string) string {
	for _, ch := range models.Channels() {
		if ch.WireSuffix == suffix {
			return ch.ID
		}
	}
	return suffix
}

// Decode matches chat text against the rule table. ok is false when no
// rule matches; err is set when a rule matched but its magnitude is invalid.
func Decode(text string) (cmd models.Command, ok bool, err error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		cmd, err = r.build(m)
		if err != nil {
			return models.Command{}, true, err
		}
		return cmd, true, nil
	}
	return models.Command{}, false, nil
}

// DecodeStrict is Decode with no-match reported as *UnknownCommandError
func DecodeStrict(text string) (models.Command, error) {
	cmd, ok, err := Decode(text)
	if err != nil {
		return models.Command{}, err
	}
	if !ok {
		return models.Command{}, &UnknownCommandError{Text: text}
	}
	return cmd, nil
}
