package persona

import "fmt"

// Trait names as the UI sends them.
const (
	TraitSoft                = "soft"
	TraitEmotionalSupportive = "emotionalSupportive"
	TraitFlirt               = "flirt"
	TraitDirty               = "dirty"
)

const (
	SliderMin = 0
	SliderMax = 100
)

// Preferences holds the four personality sliders, each in [0,100].
type Preferences struct {
	Soft                int `json:"soft" yaml:"soft"`
	EmotionalSupportive int `json:"emotionalSupportive" yaml:"emotional_supportive"`
	Flirt               int `json:"flirt" yaml:"flirt"`
	Dirty               int `json:"dirty" yaml:"dirty"`
}

// DefaultPreferences mirrors the initial slider positions of the UI.
func DefaultPreferences() Preferences {
	return Preferences{Soft: 50, EmotionalSupportive: 70, Flirt: 30, Dirty: 0}
}

type traitValue struct {
	name  string
	value int
}

func (p Preferences) ordered() []traitValue {
	return []traitValue{
		{TraitSoft, p.Soft},
		{TraitEmotionalSupportive, p.EmotionalSupportive},
		{TraitFlirt, p.Flirt},
		{TraitDirty, p.Dirty},
	}
}

// Validate reports the first slider outside [0,100].
func (p Preferences) Validate() error {
	for _, t := range p.ordered() {
		if t.value < SliderMin || t.value > SliderMax {
			return fmt.Errorf("%s must be between %d and %d, got %d", t.name, SliderMin, SliderMax, t.value)
		}
	}
	return nil
}

// Dominant returns the trait with the highest value. On a tie the later
// trait in slider order wins.
func (p Preferences) Dominant() string {
	traits := p.ordered()
	best := traits[0]
	for _, t := range traits[1:] {
		if t.value >= best.value {
			best = t
		}
	}
	return best.name
}
