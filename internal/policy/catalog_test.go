package policy

import "testing"

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range Catalog {
		if seen[p.ID] {
			t.Errorf("duplicate permission id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestCatalogEntriesAreComplete(t *testing.T) {
	for _, p := range Catalog {
		if p.ID == "" || p.Title == "" || p.Description == "" || p.Group == "" {
			t.Errorf("incomplete catalog entry: %+v", p)
		}
		switch p.Risk {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			t.Errorf("permission %q has invalid risk %q", p.ID, p.Risk)
		}
	}
}

func TestDefaultEnabledCoversEveryID(t *testing.T) {
	defaults := DefaultEnabled()
	if len(defaults) != len(Catalog) {
		t.Fatalf("DefaultEnabled() has %d entries, want %d", len(defaults), len(Catalog))
	}
	for _, p := range Catalog {
		got, ok := defaults[p.ID]
		if !ok {
			t.Errorf("DefaultEnabled() missing %q", p.ID)
			continue
		}
		if got != p.DefaultEnabled {
			t.Errorf("DefaultEnabled()[%q] = %v, want %v", p.ID, got, p.DefaultEnabled)
		}
	}
}

func TestKnown(t *testing.T) {
	if !Known("telegram.send") {
		t.Error(`Known("telegram.send") = false, want true`)
	}
	if Known("made.up") {
		t.Error(`Known("made.up") = true, want false`)
	}
}

func TestKnownConfirmIntegration(t *testing.T) {
	for _, id := range []string{"telegram", "gmail"} {
		if !KnownConfirmIntegration(id) {
			t.Errorf("KnownConfirmIntegration(%q) = false, want true", id)
		}
	}
	if KnownConfirmIntegration("discord") {
		t.Error(`KnownConfirmIntegration("discord") = true, want false`)
	}
}
