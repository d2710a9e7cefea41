package domain

const (
	MinCardWidth     = 120
	MaxCardWidth     = 350
	DefaultCardWidth = 170
)

// Settings are display preferences. They are stored beside the draft but
// never reset with it.
type Settings struct {
	AIPredictionEnabled bool `json:"isAiPredictionEnabled"`
	HoverPreviewEnabled bool `json:"isHoverPreviewEnabled"`
	CardWidth           int  `json:"cardWidth"`
}

func DefaultSettings() Settings {
	return Settings{
		AIPredictionEnabled: false,
		HoverPreviewEnabled: true,
		CardWidth:           DefaultCardWidth,
	}
}

// Normalized clamps CardWidth into the supported range. A zero width means
// the field was never set.
func (s Settings) Normalized() Settings {
	switch {
	case s.CardWidth == 0:
		s.CardWidth = DefaultCardWidth
	case s.CardWidth < MinCardWidth:
		s.CardWidth = MinCardWidth
	case s.CardWidth > MaxCardWidth:
		s.CardWidth = MaxCardWidth
	}
	return s
}
