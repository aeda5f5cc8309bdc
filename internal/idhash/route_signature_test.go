package idhash

import "testing"

func TestComputeRouteSignature_Deterministic(t *testing.T) {
	a := ComputeRouteSignature([]string{"GALA", "GUSDC", "GALA"})
	b := ComputeRouteSignature([]string{"GALA", "GUSDC", "GALA"})

	if a != b {
		t.Errorf("Same symbols produced different signatures: %s vs %s", a, b)
	}

	if len(a) != 64 {
		t.Errorf("Expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestComputeRouteSignature_OrderMatters(t *testing.T) {
	forward := ComputeRouteSignature([]string{"GALA", "GUSDC", "GWETH", "GALA"})
	reverse := ComputeRouteSignature([]string{"GALA", "GWETH", "GUSDC", "GALA"})

	if forward == reverse {
		t.Error("Reversed path should produce a different signature")
	}
}

func TestComputeRouteSignature_SeparatorAmbiguity(t *testing.T) {
	a := ComputeRouteSignature([]string{"GA", "LAGUSDC"})
	b := ComputeRouteSignature([]string{"GALA", "GUSDC"})

	if a == b {
		t.Error("Different symbol sequences should not collide")
	}
}
