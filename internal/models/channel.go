package models

// Direction tells whether a channel produces readings or accepts commands
type Direction string

const (
	DirectionSensor   Direction = "sensor"
	DirectionActuator Direction = "actuator"
)

// Sensor channel identifiers
const (
	ChannelTDS            = "tds"
	ChannelTemperature    = "temperature"
	ChannelHumidity       = "humidity"
	ChannelRain           = "rain"
	ChannelLight          = "light"
	ChannelAirTemperature = "air_temperature"
)

// Actuator and control channel identifiers
const (
	ChannelPump      = "pump"
	ChannelLED       = "led"
	ChannelGrowLight = "grow_light"
	ChannelInterval  = "interval"
)

// Channel describes one sensor or actuator stream. Channels are fixed at startup.
type Channel struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Unit      string    `json:"unit"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	// WireSuffix is the token used for this channel in outbound command payloads
	WireSuffix string `json:"wire_suffix,omitempty"`
}

// InRange reports whether v lies inside the channel's valid range (inclusive)
func (c Channel) InRange(v float64) bool {
	return v >= c.Min && v <= c.Max
}

// IsSensor reports whether the channel carries readings
func (c Channel) IsSensor() bool {
	return c.Direction == DirectionSensor
}

var registry = []Channel{
	{ID: ChannelTDS, Direction: DirectionSensor, Unit: "ppm", Min: 0, Max: 1000},
	{ID: ChannelTemperature, Direction: DirectionSensor, Unit: "°C", Min: 0, Max: 60},
	{ID: ChannelHumidity, Direction: DirectionSensor, Unit: "%", Min: 0, Max: 100},
	{ID: ChannelRain, Direction: DirectionSensor, Unit: "%", Min: 0, Max: 100},
	{ID: ChannelLight, Direction: DirectionSensor, Unit: "lux", Min: 0, Max: 100000},
	{ID: ChannelAirTemperature, Direction: DirectionSensor, Unit: "°C", Min: -40, Max: 80},

	{ID: ChannelPump, Direction: DirectionActuator, Unit: "s", Min: 0, Max: 3600, WireSuffix: "pump"},
	{ID: ChannelLED, Direction: DirectionActuator, Unit: "s", Min: 0, Max: 3600, WireSuffix: "led"},
	{ID: ChannelGrowLight, Direction: DirectionActuator, Unit: "%", Min: 0, Max: 100, WireSuffix: "light"},
	{ID: ChannelInterval, Direction: DirectionActuator, Unit: "s", Min: 1, Max: 86400, WireSuffix: "interval"},
}

var registryByID = func() map[string]Channel {
	m := make(map[string]Channel, len(registry))
	for _, ch := range registry {
		m[ch.ID] = ch
	}
	return m
}()

// Channels returns every registered channel in declaration order
func Channels() []Channel {
	out := make([]Channel, len(registry))
	copy(out, registry)
	return out
}

// SensorChannels returns only the sensor channels, in declaration order
func SensorChannels() []Channel {
	out := make([]Channel, 0, 6)
	for _, ch := range registry {
		if ch.IsSensor() {
			out = append(out, ch)
		}
	}
	return out
}

// LookupChannel returns the channel registered under id
func LookupChannel(id string) (Channel, bool) {
	ch, ok := registryByID[id]
	return ch, ok
}
