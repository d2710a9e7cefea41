package domain

// PlaceholderImageURL is shown for cards whose metadata lookup failed.
const PlaceholderImageURL = "/images/card-back.png"

type Card struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ImageURL        string `json:"imageUrl"`
	CMC             int    `json:"cmc"`
	SetCode         string `json:"setCode,omitempty"`
	CollectorNumber string `json:"collectorNumber,omitempty"`
	// ManaBucket is the only field that changes after creation. It holds the
	// curve column the user dragged the card into.
	ManaBucket *int `json:"manaBucket,omitempty"`
	Enriched   bool `json:"enriched"`
}

// CurveValue is the column a card sits in on the mana curve.
func (c Card) CurveValue() int {
	if c.ManaBucket != nil {
		return *c.ManaBucket
	}
	return c.CMC
}

func (c Card) WithManaBucket(bucket int) Card {
	c.ManaBucket = &bucket
	return c
}

func CardNames(cards []Card) []string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.Name
	}
	return names
}

func IndexOfCard(cards []Card, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func IndexOfCardName(cards []Card, name string) int {
	for i, c := range cards {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func removeAt(cards []Card, idx int) []Card {
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:idx]...)
	return append(out, cards[idx+1:]...)
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return []Card{}
	}
	out := make([]Card, len(cards))
	for i, c := range cards {
		if c.ManaBucket != nil {
			b := *c.ManaBucket
			c.ManaBucket = &b
		}
		out[i] = c
	}
	return out
}
