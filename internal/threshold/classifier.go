// Package threshold maps a reading onto a qualitative band per channel.
package threshold

import (
	"telemetry-bridge/internal/models"
)

// Band is a qualitative classification of one reading
type Band string

const (
	BandAbnormal Band = "abnormal"
	BandPoor     Band = "poor"
	BandCaution  Band = "caution"
	BandGood     Band = "good"
)

// Label is the operator-facing wording for a band on the given channel
func (b Band) Label(channel string) string {
	if channel == models.ChannelTDS {
		switch b {
		case BandAbnormal:
			return "abnormal reading"
		case BandGood:
			return "generally pure"
		case BandCaution:
			return "needs improvement"
		case BandPoor:
			return "poor quality"
		}
	}
	switch b {
	case BandAbnormal:
		return "abnormal reading"
	case BandGood:
		return "good"
	case BandCaution:
		return "caution"
	case BandPoor:
		return "poor"
	}
	return string(b)
}

// span has an inclusive upper bound. The lower bound is exclusive unless
// loInclusive is set.
type span struct {
	lo, hi      float64
	loInclusive bool
}

func (s span) contains(v float64) bool {
	if v > s.hi {
		return false
	}
	if s.loInclusive {
		return v >= s.lo
	}
	return v > s.lo
}

type rule struct {
	good    []span
	caution []span
}

// Upper bounds are inclusive: a TDS reading of exactly 300 is good.
var rules = map[string]rule{
	models.ChannelTDS: {
		good:    []span{{lo: 0, hi: 300, loInclusive: true}},
		caution: []span{{lo: 300, hi: 600}},
	},
	models.ChannelTemperature: {
		good:    []span{{lo: 18, hi: 26, loInclusive: true}},
		caution: []span{{lo: 15, hi: 18, loInclusive: true}, {lo: 26, hi: 30}},
	},
	models.ChannelHumidity: {
		good:    []span{{lo: 40, hi: 70, loInclusive: true}},
		caution: []span{{lo: 30, hi: 40, loInclusive: true}, {lo: 70, hi: 80}},
	},
	models.ChannelRain: {
		good:    []span{{lo: 0, hi: 20, loInclusive: true}},
		caution: []span{{lo: 20, hi: 60}},
	},
	models.ChannelLight: {
		good:    []span{{lo: 10000, hi: 60000, loInclusive: true}},
		caution: []span{{lo: 2000, hi: 10000, loInclusive: true}, {lo: 60000, hi: 80000}},
	},
	models.ChannelAirTemperature: {
		good:    []span{{lo: 20, hi: 30, loInclusive: true}},
		caution: []span{{lo: 15, hi: 20, loInclusive: true}, {lo: 30, hi: 35}},
	},
}

// Classify is total and deterministic. Values outside the channel's valid
// range, NaN, and channels without rules are abnormal.
func Classify(channel string, value float64) Band {
	ch, ok := models.LookupChannel(channel)
	if !ok || !ch.InRange(value) {
		return BandAbnormal
	}
	r, ok := rules[channel]
	if !ok {
		return BandAbnormal
	}
	for _, s := range r.good {
		if s.contains(value) {
			return BandGood
		}
	}
	for _, s := range r.caution {
		if s.contains(value) {
			return BandCaution
		}
	}
	return BandPoor
}
