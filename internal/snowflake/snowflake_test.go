package snowflake

import "testing"

func TestGenerate_Unique(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}

	seen := make(map[ID]bool)
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if seen[id] {
			t.Fatalf("Duplicate id generated: %d", id)
		}
		seen[id] = true
	}
}

func TestGenerate_Monotonic(t *testing.T) {
	node, _ := NewNode(1)

	prev := node.Generate()
	for i := 0; i < 1000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("Expected ids to increase, got %d after %d", id, prev)
		}
		prev = id
	}
}

func TestID_Time(t *testing.T) {
	node, _ := NewNode(1)

	id := node.Generate()
	ts := id.Time()

	if ts <= epoch {
		t.Errorf("Expected timestamp after epoch, got %d", ts)
	}
}

func TestInt64ToString(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{-42, "-42"},
		{1704067200000, "1704067200000"},
	}

	for _, tt := range tests {
		if got := Int64ToString(tt.input); got != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, got)
		}
	}
}
