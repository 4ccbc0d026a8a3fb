package session

import (
	"fmt"
	"slices"

	"github.com/pavelanni/pathway/internal/model"
)

// Interaction tags recognized on a step.
const (
	InteractionGrounding = "grounding"
	InteractionValues    = "values-selection"
	InteractionCardSort  = "card-sort"
	InteractionChoice    = "choice-point"
	InteractionPaged     = "paged"
)

// Interaction is the step-local substate of a bespoke step. It is never
// persisted and is recreated whenever its step is re-entered.
type Interaction interface {
	// Complete reports whether the step may be continued.
	Complete() bool
	// Value is what gets recorded in the step inputs under the step key.
	Value() any
}

// NewInteraction builds the substate for a bespoke step, or nil for a
// generic step.
func NewInteraction(step model.Step) Interaction {
	switch step.Interaction {
	case InteractionGrounding:
		return NewGrounding()
	case InteractionValues:
		return &ValuesSelection{Options: step.Options, Max: defaultMaxValues}
	case InteractionCardSort:
		return &CardSort{Cards: step.Options, assigned: map[string]string{}}
	case InteractionChoice:
		return &ChoicePoint{Situations: step.Options, choices: map[string]string{}}
	case InteractionPaged:
		return &PagedExercise{Pages: max(len(step.Options), 1)}
	}
	return nil
}

// Sense is one stage of the 5-4-3-2-1 grounding exercise.
type Sense struct {
	Name  string
	Count int
}

var groundingSenses = []Sense{
	{"see", 5},
	{"touch", 4},
	{"hear", 3},
	{"smell", 2},
	{"taste", 1},
}

// Grounding requires every acknowledgment of a sense to be clicked in order
// before moving to the next sense.
type Grounding struct {
	sense int
	acked int
	done  bool
}

// NewGrounding returns a grounding exercise at its first sense.
func NewGrounding() *Grounding {
	return &Grounding{}
}

// Sense returns the current sense.
func (g *Grounding) Sense() Sense { return groundingSenses[g.sense] }

// Acknowledged returns how many items of the current sense were clicked.
func (g *Grounding) Acknowledged() int { return g.acked }

// Acknowledge clicks item i of the current sense. Only the next item in
// order is accepted.
func (g *Grounding) Acknowledge(i int) error {
	if g.done || i != g.acked || i >= g.Sense().Count {
		return fmt.Errorf("acknowledge %s item %d: %w", g.Sense().Name, i, ErrBlocked)
	}
	g.acked++
	return nil
}

// NextSense advances once the current sense is fully acknowledged.
func (g *Grounding) NextSense() error {
	if g.done || g.acked < g.Sense().Count {
		return fmt.Errorf("advance past %s: %w", g.Sense().Name, ErrBlocked)
	}
	if g.sense == len(groundingSenses)-1 {
		g.done = true
		return nil
	}
	g.sense++
	g.acked = 0
	return nil
}

func (g *Grounding) Complete() bool { return g.done }

func (g *Grounding) Value() any {
	return map[string]any{"completed": g.done, "senses": g.sense + 1}
}

const defaultMaxValues = 3

// ValuesSelection lets the client pick up to Max personal values.
type ValuesSelection struct {
	Options  []string
	Max      int
	selected []string
}

// Toggle selects or deselects a value.
func (v *ValuesSelection) Toggle(value string) error {
	if !slices.Contains(v.Options, value) {
		return fmt.Errorf("unknown value %q", value)
	}
	if i := slices.Index(v.selected, value); i >= 0 {
		v.selected = slices.Delete(v.selected, i, i+1)
		return nil
	}
	if len(v.selected) >= v.Max {
		return fmt.Errorf("select %q: at most %d values: %w", value, v.Max, ErrBlocked)
	}
	v.selected = append(v.selected, value)
	return nil
}

func (v *ValuesSelection) Selected() []string { return slices.Clone(v.selected) }

func (v *ValuesSelection) Complete() bool { return len(v.selected) > 0 }

func (v *ValuesSelection) Value() any { return v.Selected() }

// CardSortPiles are the piles a card can be sorted into.
var CardSortPiles = []string{"very-important", "important", "not-important"}

// CardSort requires every card to be placed on a pile.
type CardSort struct {
	Cards    []string
	assigned map[string]string
}

// Assign places card on pile, replacing any earlier placement.
func (c *CardSort) Assign(card, pile string) error {
	if !slices.Contains(c.Cards, card) {
		return fmt.Errorf("unknown card %q", card)
	}
	if !slices.Contains(CardSortPiles, pile) {
		return fmt.Errorf("unknown pile %q", pile)
	}
	c.assigned[card] = pile
	return nil
}

// Unsorted returns the cards not yet placed, in card order.
func (c *CardSort) Unsorted() []string {
	var out []string
	for _, card := range c.Cards {
		if _, ok := c.assigned[card]; !ok {
			out = append(out, card)
		}
	}
	return out
}

func (c *CardSort) Complete() bool { return len(c.Unsorted()) == 0 }

func (c *CardSort) Value() any {
	out := make(map[string]string, len(c.assigned))
	for k, v := range c.assigned {
		out[k] = v
	}
	return out
}

// Choice point directions.
const (
	Toward = "toward"
	Away   = "away"
)

// ChoicePoint asks whether each situation moves the client toward or away
// from their values.
type ChoicePoint struct {
	Situations []string
	choices    map[string]string
}

// Choose records a direction for a situation.
func (c *ChoicePoint) Choose(situation, direction string) error {
	if !slices.Contains(c.Situations, situation) {
		return fmt.Errorf("unknown situation %q", situation)
	}
	if direction != Toward && direction != Away {
		return fmt.Errorf("invalid direction %q", direction)
	}
	c.choices[situation] = direction
	return nil
}

func (c *ChoicePoint) Complete() bool { return len(c.choices) == len(c.Situations) }

func (c *ChoicePoint) Value() any {
	out := make(map[string]string, len(c.choices))
	for k, v := range c.choices {
		out[k] = v
	}
	return out
}

// PagedExercise is a multi-page exercise that completes on its last page.
type PagedExercise struct {
	Pages int
	page  int
}

func (p *PagedExercise) Page() int { return p.page }

func (p *PagedExercise) NextPage() error {
	if p.page >= p.Pages-1 {
		return fmt.Errorf("next page: %w", ErrBlocked)
	}
	p.page++
	return nil
}

func (p *PagedExercise) PrevPage() error {
	if p.page == 0 {
		return fmt.Errorf("previous page: %w", ErrBlocked)
	}
	p.page--
	return nil
}

func (p *PagedExercise) Complete() bool { return p.page == p.Pages-1 }

func (p *PagedExercise) Value() any { return map[string]any{"pagesViewed": p.page + 1} }
