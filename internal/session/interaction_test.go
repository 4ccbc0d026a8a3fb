package session

import (
	"errors"
	"testing"

	"github.com/pavelanni/pathway/internal/model"
)

func TestGroundingStrictOrder(t *testing.T) {
	g := NewGrounding()

	if err := g.Acknowledge(1); !errors.Is(err, ErrBlocked) {
		t.Fatalf("out of order acknowledge err = %v", err)
	}
	if err := g.NextSense(); !errors.Is(err, ErrBlocked) {
		t.Fatalf("early NextSense err = %v", err)
	}

	for _, sense := range groundingSenses {
		if g.Sense().Name != sense.Name {
			t.Fatalf("sense = %s, want %s", g.Sense().Name, sense.Name)
		}
		for i := 0; i < sense.Count; i++ {
			if err := g.Acknowledge(i); err != nil {
				t.Fatalf("Acknowledge(%s, %d): %v", sense.Name, i, err)
			}
		}
		if g.Complete() {
			t.Fatal("complete before last NextSense")
		}
		if err := g.NextSense(); err != nil {
			t.Fatalf("NextSense after %s: %v", sense.Name, err)
		}
	}
	if !g.Complete() {
		t.Error("grounding should be complete after all senses")
	}
}

func TestValuesSelection(t *testing.T) {
	v := NewInteraction(model.Step{Interaction: InteractionValues, Options: []string{"a", "b", "c", "d"}}).(*ValuesSelection)
	if v.Complete() {
		t.Fatal("empty selection should not be complete")
	}
	for _, o := range []string{"a", "b", "c"} {
		if err := v.Toggle(o); err != nil {
			t.Fatalf("Toggle(%s): %v", o, err)
		}
	}
	if err := v.Toggle("d"); !errors.Is(err, ErrBlocked) {
		t.Errorf("fourth value err = %v, want ErrBlocked", err)
	}
	if err := v.Toggle("b"); err != nil {
		t.Fatalf("deselect: %v", err)
	}
	if err := v.Toggle("z"); err == nil {
		t.Error("unknown value should fail")
	}
	got := v.Selected()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("selected = %v", got)
	}
	if !v.Complete() {
		t.Error("selection should be complete")
	}
}

func TestCardSort(t *testing.T) {
	c := NewInteraction(model.Step{Interaction: InteractionCardSort, Options: []string{"family", "work"}}).(*CardSort)
	if err := c.Assign("family", "very-important"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if c.Complete() {
		t.Fatal("one card unsorted")
	}
	if err := c.Assign("work", "bogus"); err == nil {
		t.Error("unknown pile should fail")
	}
	_ = c.Assign("work", "important")
	if !c.Complete() {
		t.Error("all cards sorted")
	}
	if c.Value().(map[string]string)["work"] != "important" {
		t.Errorf("value = %v", c.Value())
	}
}

func TestChoicePoint(t *testing.T) {
	c := NewInteraction(model.Step{Interaction: InteractionChoice, Options: []string{"argue", "walk"}}).(*ChoicePoint)
	if err := c.Choose("argue", "sideways"); err == nil {
		t.Error("invalid direction should fail")
	}
	_ = c.Choose("argue", Away)
	if c.Complete() {
		t.Fatal("one situation open")
	}
	_ = c.Choose("walk", Toward)
	if !c.Complete() {
		t.Error("all situations chosen")
	}
}

func TestNoInteractionForGenericStep(t *testing.T) {
	if got := NewInteraction(model.Step{Type: model.StepIntro}); got != nil {
		t.Errorf("NewInteraction = %T, want nil", got)
	}
}
