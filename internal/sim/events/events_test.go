package events

import "testing"

func TestSortedByPriorityStable(t *testing.T) {
	l := NewLog()
	l.Add("p1", Event{Type: ShipBuilt, Message: "a"})
	l.Add("p1", Event{Type: PlanetCaptured, Message: "b"})
	l.Add("p1", Event{Type: ShipBuilt, Message: "c"})
	l.Add("p1", Event{Type: PopulationGrowth, Message: "d"})
	l.Add("", Event{Type: PlanetLost, Message: "ignored"})

	got := l.Sorted()["p1"]
	want := []string{"b", "a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i, m := range want {
		if got[i].Message != m {
			t.Fatalf("pos %d: got %q want %q", i, got[i].Message, m)
		}
	}
	if l.For("p1")[0].Message != "a" {
		t.Fatalf("Sorted must not reorder the log itself")
	}
}

func TestTypeNamesRoundTrip(t *testing.T) {
	for typ, name := range names {
		got, ok := ParseType(name)
		if !ok || got != typ {
			t.Fatalf("ParseType(%q)=%v,%v", name, got, ok)
		}
	}
}
