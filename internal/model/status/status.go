package status

import "time"

// DefaultMax is the upper bound of every attribute unless configured otherwise.
const DefaultMax = 100

// UserStatus is the persisted per-user attribute row.
type UserStatus struct {
	UserID            string    `json:"userId"`
	Affection         int       `json:"affection"`
	Stamina           int       `json:"stamina"`
	Mood              int       `json:"mood"`
	LastStaminaUpdate time.Time `json:"lastStaminaUpdate"`
	LastMoodUpdate    time.Time `json:"lastMoodUpdate"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Delta is a transient attribute change. It is never written directly.
type Delta struct {
	Affection int `json:"affection"`
	Stamina   int `json:"stamina"`
	Mood      int `json:"mood"`
}

// Initial holds the values a freshly created row starts from.
type Initial struct {
	Affection int
	Stamina   int
	Mood      int
}

// DefaultInitial mirrors the product defaults.
var DefaultInitial = Initial{Affection: 50, Stamina: 100, Mood: 50}

// Limits bounds every attribute to [0, Max].
type Limits struct {
	Max int
}

// DefaultLimits uses DefaultMax.
var DefaultLimits = Limits{Max: DefaultMax}

// Clamp bounds v to [0, l.Max].
func (l Limits) Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Apply returns s with d added to each attribute independently and clamped.
func (l Limits) Apply(s UserStatus, d Delta) UserStatus {
	s.Affection = l.Clamp(add(s.Affection, d.Affection))
	s.Stamina = l.Clamp(add(s.Stamina, d.Stamina))
	s.Mood = l.Clamp(add(s.Mood, d.Mood))
	return s
}

// New builds a row for userID at the initial values, stamping both recovery
// baselines with now.
func (i Initial) New(userID string, now time.Time) UserStatus {
	return UserStatus{
		UserID:            userID,
		Affection:         i.Affection,
		Stamina:           i.Stamina,
		Mood:              i.Mood,
		LastStaminaUpdate: now,
		LastMoodUpdate:    now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// add saturates instead of wrapping so huge deltas still clamp correctly.
func add(a, b int) int {
	sum := a + b
	if b > 0 && sum < a {
		return int(^uint(0) >> 1)
	}
	if b < 0 && sum > a {
		return -int(^uint(0)>>1) - 1
	}
	return sum
}
