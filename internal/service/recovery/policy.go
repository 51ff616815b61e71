// Package recovery restores stamina and settles mood over time.
package recovery

import (
	"errors"
	"time"

	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

// Policy describes how attributes drift back to their resting values.
// Stamina rests at Max, mood rests at MoodMidpoint.
type Policy struct {
	WakeInterval    time.Duration
	StaminaInterval time.Duration
	StaminaAmount   int
	MoodInterval    time.Duration
	MoodAmount      int
	MoodMidpoint    int
	Max             int
}

// DefaultPolicy wakes every ten minutes, restores 10 stamina per ten minutes
// and moves mood one point per hour toward 50.
var DefaultPolicy = Policy{
	WakeInterval:    10 * time.Minute,
	StaminaInterval: 10 * time.Minute,
	StaminaAmount:   10,
	MoodInterval:    time.Hour,
	MoodAmount:      1,
	MoodMidpoint:    50,
	Max:             status.DefaultMax,
}

// Validate reports the first unusable setting.
func (p Policy) Validate() error {
	switch {
	case p.WakeInterval <= 0:
		return errors.New("wake interval must be positive")
	case p.StaminaInterval <= 0:
		return errors.New("stamina interval must be positive")
	case p.MoodInterval <= 0:
		return errors.New("mood interval must be positive")
	case p.StaminaAmount < 0 || p.MoodAmount < 0:
		return errors.New("recovery amounts must not be negative")
	case p.Max <= 0:
		return errors.New("max must be positive")
	case p.MoodMidpoint < 0 || p.MoodMidpoint > p.Max:
		return errors.New("mood midpoint must be within [0, max]")
	}
	return nil
}

// Apply returns st as it should look at now. It is a pure function of its
// inputs. Affection is never touched.
//
// A baseline is stamped with now when the attribute is at rest, or reaches
// rest in this pass, or when the clock went backwards. When whole intervals
// elapsed without reaching rest, the baseline advances by exactly those
// intervals so the remainder still counts toward the next one.
func (p Policy) Apply(st status.UserStatus, now time.Time) status.UserStatus {
	st.Stamina, st.LastStaminaUpdate = p.stamina(st.Stamina, st.LastStaminaUpdate, now)
	st.Mood, st.LastMoodUpdate = p.mood(st.Mood, st.LastMoodUpdate, now)
	return st
}

func (p Policy) stamina(value int, baseline, now time.Time) (int, time.Time) {
	cycles, ok := elapsedCycles(baseline, now, p.StaminaInterval)
	if !ok {
		return value, now
	}
	if value >= p.Max {
		return value, now
	}
	if cycles == 0 || p.StaminaAmount == 0 {
		return value, baseline
	}

	value += gain(cycles, p.StaminaAmount, p.Max-value)
	if value >= p.Max {
		return p.Max, now
	}
	return value, baseline.Add(time.Duration(cycles) * p.StaminaInterval)
}

func (p Policy) mood(value int, baseline, now time.Time) (int, time.Time) {
	cycles, ok := elapsedCycles(baseline, now, p.MoodInterval)
	if !ok {
		return value, now
	}
	if value == p.MoodMidpoint {
		return value, now
	}
	if cycles == 0 || p.MoodAmount == 0 {
		return value, baseline
	}

	if value < p.MoodMidpoint {
		value += gain(cycles, p.MoodAmount, p.MoodMidpoint-value)
	} else {
		value -= gain(cycles, p.MoodAmount, value-p.MoodMidpoint)
	}
	if value == p.MoodMidpoint {
		return value, now
	}
	return value, baseline.Add(time.Duration(cycles) * p.MoodInterval)
}

// elapsedCycles counts whole intervals between baseline and now. It reports
// false when now is before baseline.
func elapsedCycles(baseline, now time.Time, interval time.Duration) (int64, bool) {
	elapsed := now.Sub(baseline)
	if elapsed < 0 {
		return 0, false
	}
	return int64(elapsed / interval), true
}

// gain is cycles*amount capped at limit.
func gain(cycles int64, amount, limit int) int {
	if limit <= 0 || cycles <= 0 || amount <= 0 {
		return 0
	}
	if cycles >= int64(limit) || amount >= limit {
		return limit
	}
	if g := cycles * int64(amount); g < int64(limit) {
		return int(g)
	}
	return limit
}
