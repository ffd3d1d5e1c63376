package sweep

import (
	"reflect"
	"testing"
)

func TestParseRangeSpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  RangeSpec
		expectErr bool
	}{
		{"valid_range", "0.1:0.9:0.1", RangeSpec{Min: 0.1, Max: 0.9, Step: 0.1}, false},
		{"with_spaces", " 0 : 1 : 0.25 ", RangeSpec{Min: 0, Max: 1, Step: 0.25}, false},
		{"missing_parts", "0:1", RangeSpec{}, true},
		{"too_many_parts", "0:1:0.1:2", RangeSpec{}, true},
		{"invalid_min", "abc:1:0.1", RangeSpec{}, true},
		{"invalid_max", "0:abc:0.1", RangeSpec{}, true},
		{"invalid_step", "0:1:abc", RangeSpec{}, true},
		{"zero_step", "0:1:0", RangeSpec{}, true},
		{"negative_step", "0:1:-0.1", RangeSpec{}, true},
		{"nan_step", "0:1:NaN", RangeSpec{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseRangeSpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, result)
			}
		})
	}
}

func TestGenerateRange(t *testing.T) {
	testCases := []struct {
		name          string
		min, max, stp float64
		expected      []float64
	}{
		{"tenths", 0.1, 0.5, 0.1, []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
		{"quarters", 0, 1, 0.25, []float64{0, 0.25, 0.5, 0.75, 1}},
		{"max_not_on_step", 0, 0.25, 0.1, []float64{0, 0.1, 0.2}},
		{"single_value", 0.5, 0.5, 0.1, []float64{0.5}},
		{"min_above_max", 1, 0, 0.1, nil},
		{"zero_step", 0, 1, 0, nil},
		{"too_many", 0, 1, 1e-6, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := GenerateRange(tc.min, tc.max, tc.stp)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("GenerateRange(%v, %v, %v) = %v, want %v", tc.min, tc.max, tc.stp, result, tc.expected)
			}
		})
	}
}

func TestParseParamList(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []float64
		expectErr bool
	}{
		{"empty", "", nil, false},
		{"list", "0.2, 0.4,0.6", []float64{0.2, 0.4, 0.6}, false},
		{"range", "0.2:0.4:0.1", []float64{0.2, 0.3, 0.4}, false},
		{"bad_list", "0.2,x", nil, true},
		{"bad_range", "0.2:0.4", nil, true},
		{"empty_range", "0.4:0.2:0.1", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseParamList(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("ParseParamList(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestExpandRanges(t *testing.T) {
	result, err := ExpandRanges([]float64{1, 2}, []float64{10, 20, 30})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := [][]float64{{1, 10}, {1, 20}, {1, 30}, {2, 10}, {2, 20}, {2, 30}}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("ExpandRanges() = %v, want %v", result, expected)
	}

	if result, err := ExpandRanges(); result != nil || err != nil {
		t.Errorf("ExpandRanges() with no input = %v, %v", result, err)
	}
	if _, err := ExpandRanges([]float64{1}, nil); err == nil {
		t.Error("expected error for empty dimension")
	}

	big := GenerateRange(0, 1, 0.001)
	if _, err := ExpandRanges(big, big); err == nil {
		t.Error("expected error for oversized product")
	}
}

func TestParseCSVFloat64s(t *testing.T) {
	result, err := ParseCSVFloat64s("1.5, ,2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result, []float64{1.5, 2}) {
		t.Errorf("ParseCSVFloat64s() = %v", result)
	}
	if _, err := ParseCSVFloat64s("1,abc"); err == nil {
		t.Error("expected error for invalid float")
	}
}
