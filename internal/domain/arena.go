package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var arenaLine = regexp.MustCompile(`(\d+)\s+(.+?)\s+\((\w+)\)\s+(\d+)`)

// Limits on what ParseArenaList will expand.
const (
	MaxArenaLineCount = 250
	MaxArenaListCards = 1000
)

// FormatArenaList renders a pool in the MTG Arena import format,
// "{count} {name} ({SET}) {collector}", one line per distinct name in the
// order the names were first picked.
func FormatArenaList(cards []Card) string {
	type entry struct {
		card  Card
		count int
	}
	var order []string
	entries := make(map[string]*entry)
	for _, c := range cards {
		if e, ok := entries[c.Name]; ok {
			e.count++
			continue
		}
		entries[c.Name] = &entry{card: c, count: 1}
		order = append(order, c.Name)
	}

	lines := make([]string, 0, len(order))
	for _, name := range order {
		e := entries[name]
		setCode := e.card.SetCode
		if setCode == "" {
			setCode = "SET"
		}
		collector := e.card.CollectorNumber
		if collector == "" {
			collector = "1"
		}
		lines = append(lines, fmt.Sprintf("%d %s (%s) %s", e.count, name, strings.ToUpper(setCode), collector))
	}
	return strings.Join(lines, "\n")
}

// ParseArenaList expands an Arena deck list into un-enriched cards, one per
// copy. Lines that do not match the format are skipped. A line over
// MaxArenaLineCount copies, or a list over MaxArenaListCards cards, fails
// with ErrDecklistTooLarge before anything is expanded.
func ParseArenaList(list string) ([]Card, error) {
	type line struct {
		name, setCode, collector string
		count                    int
	}
	var lines []line
	total := 0
	for _, raw := range strings.Split(strings.TrimSpace(list), "\n") {
		m := arenaLine.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[1])
		if err != nil || count > MaxArenaLineCount {
			return nil, fmt.Errorf("%w: %q", ErrDecklistTooLarge, strings.TrimSpace(raw))
		}
		total += count
		if total > MaxArenaListCards {
			return nil, fmt.Errorf("%w: more than %d cards", ErrDecklistTooLarge, MaxArenaListCards)
		}
		lines = append(lines, line{name: m[2], setCode: m[3], collector: m[4], count: count})
	}

	cards := make([]Card, 0, total)
	for _, l := range lines {
		for i := 0; i < l.count; i++ {
			cards = append(cards, Card{
				ID:              fmt.Sprintf("%s-%s-%s-%d", l.name, l.setCode, l.collector, i),
				Name:            l.name,
				SetCode:         l.setCode,
				CollectorNumber: l.collector,
			})
		}
	}
	return cards, nil
}

type CurveColumn struct {
	Value int    `json:"value"`
	Cards []Card `json:"cards"`
}

// ManaCurve groups a pool into columns by curve value, lowest first.
func ManaCurve(cards []Card) []CurveColumn {
	byValue := make(map[int][]Card)
	for _, c := range cards {
		v := c.CurveValue()
		byValue[v] = append(byValue[v], c)
	}

	values := make([]int, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Ints(values)

	columns := make([]CurveColumn, 0, len(values))
	for _, v := range values {
		columns = append(columns, CurveColumn{Value: v, Cards: byValue[v]})
	}
	return columns
}
