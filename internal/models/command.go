package models

// Action is the operator intent carried by a Command
type Action string

const (
	ActionOn       Action = "on"
	ActionOff      Action = "off"
	ActionDuration Action = "duration"
	ActionSet      Action = "set"
)

// Command is a decoded operator intent, consumed once by the codec
type Command struct {
	Channel   string   `json:"channel"`
	Action    Action   `json:"action"`
	Magnitude *float64 `json:"magnitude,omitempty"`
}

// Magnitude returns a pointer to v, for building Commands inline
func Magnitude(v float64) *float64 {
	return &v
}
