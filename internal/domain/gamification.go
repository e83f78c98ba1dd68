package domain

import (
	"math"
	"time"
)

// LevelForXP derives the level from total accumulated XP:
// floor(0.1 * sqrt(xp)) + 1. It is recomputed from scratch on every change.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Floor(0.1*math.Sqrt(float64(xp)))) + 1
}

// XPForLevel returns the minimum XP at which the given level is reached
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return n * n * 100
}

// StartOfDay truncates t to local midnight in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CalendarDaysBetween counts midnight boundaries between from and to in loc
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	a := StartOfDay(from, loc)
	b := StartOfDay(to, loc)
	// Dates are compared as civil days so DST shifts do not skew the count.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Floor(ub.Sub(ua).Hours() / 24))
}

// NextStreak applies a login at now to the stored streak.
//
//	same day        -> unchanged
//	next day        -> streak + 1
//	two or more     -> 1
//
// A user with no recorded activity starts at 1. A login that appears to be
// earlier than the last activity leaves the streak unchanged.
func NextStreak(streak int, lastActive *time.Time, now time.Time, loc *time.Location) int {
	if lastActive == nil {
		return 1
	}
	switch days := CalendarDaysBetween(*lastActive, now, loc); {
	case days == 1:
		return streak + 1
	case days > 1:
		return 1
	default:
		return streak
	}
}

// GameState is the gamification view of a user
type GameState struct {
	XPPoints       int        `json:"xp_points"`
	Level          int        `json:"level"`
	Streak         int        `json:"streak"`
	LastActiveDate *time.Time `json:"last_active_date"`
	NextLevelXP    int        `json:"next_level_xp"`
	XPToNextLevel  int        `json:"xp_to_next_level"`
}

// GameStateOf projects the gamification fields of a user
func GameStateOf(u *User) GameState {
	next := XPForLevel(u.Level + 1)
	return GameState{
		XPPoints:       u.XPPoints,
		Level:          u.Level,
		Streak:         u.Streak,
		LastActiveDate: u.LastActiveDate,
		NextLevelXP:    next,
		XPToNextLevel:  max(next-u.XPPoints, 0),
	}
}
