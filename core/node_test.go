package core

import "testing"

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid short id", input: "A"},
		{name: "valid alphanumeric", input: "node12"},
		{name: "empty", input: "", wantErr: true},
		{name: "contains colon", input: "a:b", wantErr: true},
		{name: "contains hyphen", input: "a-b", wantErr: true},
		{name: "too long", input: string(make([]byte, MaxNodeIDLen+1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodeID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseNodeID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.String() != tt.input {
				t.Errorf("ParseNodeID(%q) = %q, want %q", tt.input, got, tt.input)
			}
		})
	}
}

func TestNodeIDIsZero(t *testing.T) {
	var id NodeID
	if !id.IsZero() {
		t.Error("IsZero() = false for zero value, want true")
	}
	if NodeID("A").IsZero() {
		t.Error("IsZero() = true for non-empty id, want false")
	}
}

func TestRouteContains(t *testing.T) {
	r := Route{"B", "C"}
	if !r.Contains("B") {
		t.Error("Contains(B) = false, want true")
	}
	if r.Contains("D") {
		t.Error("Contains(D) = true, want false")
	}
}

func TestRouteReversed(t *testing.T) {
	r := Route{"B", "C", "D"}
	want := Route{"D", "C", "B"}
	if got := r.Reversed(); !got.Equal(want) {
		t.Errorf("Reversed() = %v, want %v", got, want)
	}
	// Original must be untouched.
	if !r.Equal(Route{"B", "C", "D"}) {
		t.Error("Reversed() mutated the receiver")
	}
}

func TestRouteEmptyReversed(t *testing.T) {
	var r Route
	if got := r.Reversed(); len(got) != 0 {
		t.Errorf("Reversed() of empty route = %v, want empty", got)
	}
}

func TestRouteClone(t *testing.T) {
	r := Route{"B"}
	clone := r.Clone()
	clone[0] = "Z"
	if r[0] != "B" {
		t.Error("Clone() shares backing array with original")
	}
}
