package chat

import (
	"fmt"
	"strconv"
	"strings"

	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/services"
)

var displayNames = map[string]string{
	models.ChannelTDS:            "TDS",
	models.ChannelTemperature:    "Water temperature",
	models.ChannelHumidity:       "Humidity",
	models.ChannelRain:           "Rain",
	models.ChannelLight:          "Light",
	models.ChannelAirTemperature: "Air temperature",
	models.ChannelPump:           "Pump",
	models.ChannelLED:            "LED",
	models.ChannelGrowLight:      "Grow light",
	models.ChannelInterval:       "Sampling interval",
}

func displayName(channel string) string {
	if name, ok := displayNames[channel]; ok {
		return name
	}
	return channel
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatStatus(st services.ChannelStatus) string {
	if st.Reading == nil {
		return fmt.Sprintf("%s: no data yet", displayName(st.Channel))
	}
	return fmt.Sprintf("%s: %s %s (%s)", displayName(st.Channel), num(st.Reading.Value), st.Unit, st.BandLabel)
}

func formatReport(rep services.ChannelReport) string {
	m := rep.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "%s report, last %d rows (%d usable)\n", displayName(rep.Channel), rep.FetchedRows, m.Count)
	fmt.Fprintf(&b, "Average: %s %s (%s)\n", round2(m.Average), rep.Unit, rep.AverageBand.Label(rep.Channel))
	fmt.Fprintf(&b, "Median: %s\n", round2(m.Median))
	fmt.Fprintf(&b, "Mode: %s\n", round2(m.Mode))
	fmt.Fprintf(&b, "Std dev: %s\n", round2(m.StdDev))
	fmt.Fprintf(&b, "Min/Max: %s / %s\n", round2(m.Min), round2(m.Max))
	fmt.Fprintf(&b, "P25/P50/P75: %s / %s / %s", round2(m.P25), round2(m.P50), round2(m.P75))
	if rep.Latest.Reading != nil {
		b.WriteString("\nNow: ")
		b.WriteString(formatStatus(rep.Latest))
	}
	return b.String()
}

func formatDispatch(d services.Dispatch) string {
	name := displayName(d.Command.Channel)
	switch d.Command.Action {
	case models.ActionOff:
		return fmt.Sprintf("%s turned off.", name)
	case models.ActionSet:
		return fmt.Sprintf("%s set to %s.", name, num(*d.Command.Magnitude))
	}
	if d.Command.Magnitude != nil {
		return fmt.Sprintf("%s on for %s seconds.", name, num(*d.Command.Magnitude))
	}
	return fmt.Sprintf("%s turned on.", name)
}
