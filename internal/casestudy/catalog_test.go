package casestudy

import "testing"

func TestResolveKnownAndAlias(t *testing.T) {
	cs := Resolve("kal801")
	if cs.Title != "Korean Air Flight 801" || cs.Location != "Guam" {
		t.Fatalf("Resolve(kal801) = %+v", cs)
	}
	alias := Resolve("CRASH_KAL801")
	if alias.Title != "Korean Air Flight 801 (Historical Crash)" || alias.Featured {
		t.Fatalf("Resolve(CRASH_KAL801) = %+v", alias)
	}
}

func TestResolveUnknown(t *testing.T) {
	cs := Resolve("PANAM103")
	if cs.Title != "Unknown Flight" || cs.Description != "Flight data not available" || cs.Status != "Unknown" {
		t.Fatalf("Resolve(PANAM103) = %+v", cs)
	}
	if cs.ID != "PANAM103" {
		t.Fatalf("ID = %q, want the requested id", cs.ID)
	}
	if _, ok := Lookup("PANAM103"); ok {
		t.Fatal("Lookup(PANAM103) unexpectedly found")
	}
}

func TestListFeatured(t *testing.T) {
	list := List()
	if len(list) != 5 {
		t.Fatalf("List() = %d entries, want 5", len(list))
	}
	for _, cs := range list {
		if !cs.Featured || cs.AISolution == "" {
			t.Fatalf("featured entry incomplete: %+v", cs)
		}
	}
	if len(IDs()) != 8 {
		t.Fatalf("IDs() = %d, want 8", len(IDs()))
	}
}
