package scoring

import (
	"errors"
	"math"
)

var ErrNegativePoints = errors.New("points must not be negative")

// Level is one tier of the level table. Max is inclusive; the open-ended top
// tier uses math.MaxInt.
type Level struct {
	Name string `json:"name"`
	Min  int    `json:"min"`
	Max  int    `json:"max"`
}

// Open reports whether the tier has no upper bound.
func (l Level) Open() bool {
	return l.Max == math.MaxInt
}

// Levels is the canonical level table, ascending and gap-free.
var Levels = []Level{
	{Name: "Eco-Iniciado", Min: 0, Max: 499},
	{Name: "Eco-Explorador", Min: 500, Max: 1499},
	{Name: "Eco-Agente", Min: 1500, Max: 2999},
	{Name: "Eco-Maestro", Min: 3000, Max: 4999},
	{Name: "Eco-Leyenda", Min: 5000, Max: math.MaxInt},
}

// LevelFor returns the tier for a points total and the percentage already
// covered inside that tier. The top tier always reports 100.
func LevelFor(points int) (Level, int, error) {
	if points < 0 {
		return Level{}, 0, ErrNegativePoints
	}
	for _, l := range Levels {
		if points < l.Min || points > l.Max {
			continue
		}
		if l.Open() {
			return l, 100, nil
		}
		span := l.Max + 1 - l.Min
		return l, (points - l.Min) * 100 / span, nil
	}
	// unreachable while Levels covers [0, MaxInt]
	return Levels[len(Levels)-1], 100, nil
}

// LevelName is LevelFor without the progress, for callers that only cache
// the label. Negative totals map to the first tier name with an error.
func LevelName(points int) (string, error) {
	l, _, err := LevelFor(points)
	if err != nil {
		return Levels[0].Name, err
	}
	return l.Name, nil
}

// Next returns the tier after l, or false when l is the top tier.
func Next(l Level) (Level, bool) {
	for i, cur := range Levels {
		if cur.Name == l.Name && i+1 < len(Levels) {
			return Levels[i+1], true
		}
	}
	return Level{}, false
}
