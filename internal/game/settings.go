// internal/game/settings.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/wordparty/internal/variant"
)

// Setting ids accepted by Settings.Apply.
const (
	SettingDifficulty   = 1
	SettingRoundCount   = 2
	SettingTimePerRound = 3
)

// roundCountValues and timePerRoundValues map a value id (index+1) to the stored value.
var (
	roundCountValues   = []int{2, 4, 6, 8, 10}
	timePerRoundValues = []int{30, 60, 90, 120, 150}
)

// Settings are the leader-editable options of a room.
type Settings struct {
	Difficulty   variant.Difficulty `json:"difficulty"`
	RoundCount   int                `json:"roundCount"`
	TimePerRound int                `json:"timePerRound"` // seconds
}

// DefaultSettings returns normal difficulty, six rounds and 60 seconds per round.
func DefaultSettings() Settings {
	return Settings{
		Difficulty:   variant.Normal,
		RoundCount:   6,
		TimePerRound: 60,
	}
}

// IsDefault reports whether nothing was changed from DefaultSettings.
func (s Settings) IsDefault() bool {
	return s == DefaultSettings()
}

// Apply sets one option by id and returns the stored value.
// Unknown ids or values leave the settings unchanged.
func (s *Settings) Apply(settingID, valueID int) (int, error) {
	switch settingID {
	case SettingDifficulty:
		d := variant.Difficulty(valueID)
		if !d.Valid() {
			return 0, fmt.Errorf("%w: difficulty %d", ErrInvalidSetting, valueID)
		}
		s.Difficulty = d
		return valueID, nil
	case SettingRoundCount:
		v, err := lookupValue(roundCountValues, valueID)
		if err != nil {
			return 0, fmt.Errorf("%w: round count id %d", ErrInvalidSetting, valueID)
		}
		s.RoundCount = v
		return v, nil
	case SettingTimePerRound:
		v, err := lookupValue(timePerRoundValues, valueID)
		if err != nil {
			return 0, fmt.Errorf("%w: time per round id %d", ErrInvalidSetting, valueID)
		}
		s.TimePerRound = v
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unknown setting id %d", ErrInvalidSetting, settingID)
	}
}

func lookupValue(values []int, id int) (int, error) {
	if id < 1 || id > len(values) {
		return 0, fmt.Errorf("value id %d out of range", id)
	}
	return values[id-1], nil
}
