package engine

import (
	"errors"
	"testing"
)

func hasBase(name string) bool {
	switch name {
	case "Open", "High", "Low", "Close", "Volume":
		return true
	}
	return false
}

func TestParseComparison(t *testing.T) {
	e, err := Parse("Close > 100.5")
	if err != nil {
		t.Fatal(err)
	}
	cmp, ok := e.(Compare)
	if !ok || cmp.Op != OpGt {
		t.Fatalf("expected Compare(>), got %#v", e)
	}
	if cmp.Left.(ColumnRef).Name != "Close" {
		t.Fatalf("expected Close operand, got %#v", cmp.Left)
	}
	if cmp.Right.(Literal).Value != 100.5 {
		t.Fatalf("expected literal 100.5, got %#v", cmp.Right)
	}
}

func TestParseBooleanPrecedence(t *testing.T) {
	// and binds tighter than or
	e, err := Parse("Close > 1 or Close < 2 and Open > 3")
	if err != nil {
		t.Fatal(err)
	}
	or, ok := e.(Or)
	if !ok {
		t.Fatalf("expected Or at root, got %#v", e)
	}
	if _, ok := or.Right.(And); !ok {
		t.Fatalf("expected And on the right, got %#v", or.Right)
	}
}

func TestParseNotAndParens(t *testing.T) {
	e, err := Parse("not (Close > 1 or Open < 2)")
	if err != nil {
		t.Fatal(err)
	}
	n, ok := e.(Not)
	if !ok {
		t.Fatalf("expected Not at root, got %#v", e)
	}
	if _, ok := n.Expr.(Or); !ok {
		t.Fatalf("expected Or inside not, got %#v", n.Expr)
	}
}

func TestParseRejectsSingleEquals(t *testing.T) {
	if _, err := Parse("Close = 5"); err == nil {
		t.Fatal("expected error for single =")
	}
}

func TestParseRejectsTrailingJunk(t *testing.T) {
	if _, err := Parse("Close > 5 Close"); err == nil {
		t.Fatal("expected error for trailing tokens")
	}
}

func TestResolveShiftSuffix(t *testing.T) {
	e, err := Parse("Close_2 > 5")
	if err != nil {
		t.Fatal(err)
	}
	r, err := Resolve(e, hasBase)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := r.(Compare).Left.(ShiftedColumnRef)
	if !ok {
		t.Fatalf("expected ShiftedColumnRef, got %#v", r.(Compare).Left)
	}
	if s.Name != "Close" || s.Shift != 2 {
		t.Fatalf("expected Close shift 2, got %s shift %d", s.Name, s.Shift)
	}
}

func TestResolveExactColumnWinsOverShift(t *testing.T) {
	// a real column named EMA_20 must not be split into EMA shifted by 20
	has := func(name string) bool { return name == "EMA_20" || hasBase(name) }
	e, err := Parse("EMA_20 > 5")
	if err != nil {
		t.Fatal(err)
	}
	r, err := Resolve(e, has)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := r.(Compare).Left.(ColumnRef)
	if !ok || c.Name != "EMA_20" {
		t.Fatalf("expected exact column EMA_20, got %#v", r.(Compare).Left)
	}
}

func TestResolveShiftedIndicator(t *testing.T) {
	has := func(name string) bool { return name == "EMA_20" || hasBase(name) }
	e, err := Parse("EMA_20_1 > EMA_20")
	if err != nil {
		t.Fatal(err)
	}
	r, err := Resolve(e, has)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := r.(Compare).Left.(ShiftedColumnRef)
	if !ok || s.Name != "EMA_20" || s.Shift != 1 {
		t.Fatalf("expected EMA_20 shifted by 1, got %#v", r.(Compare).Left)
	}
}

func TestResolveUnknownColumn(t *testing.T) {
	e, err := Parse("Bogus > 1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Resolve(e, hasBase)
	var te *TranslationError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranslationError, got %v", err)
	}
	if te.Name != "Bogus" {
		t.Fatalf("expected Bogus in error, got %q", te.Name)
	}
}
