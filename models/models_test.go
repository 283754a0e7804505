package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFilterValueUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want FilterValue
	}{
		{"null", `null`, FilterValue{Kind: FilterNone}},
		{"empty string", `""`, FilterValue{Kind: FilterNone}},
		{"blank string", `"   "`, FilterValue{Kind: FilterNone}},
		{"single string", `"MIT"`, FilterValue{Kind: FilterOne, Values: []string{"MIT"}}},
		{"empty array", `[]`, FilterValue{Kind: FilterNone}},
		{"single element array", `["MIT"]`, FilterValue{Kind: FilterOne, Values: []string{"MIT"}}},
		{"many", `["MIT","Stanford"]`, FilterValue{Kind: FilterMany, Values: []string{"MIT", "Stanford"}}},
		{"blank elements dropped", `["", "MIT", "  "]`, FilterValue{Kind: FilterOne, Values: []string{"MIT"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got FilterValue
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFilterValueUnmarshalRejectsNonStrings(t *testing.T) {
	for _, in := range []string{`5`, `{"a":1}`, `[1,2]`, `[true]`} {
		var got FilterValue
		if err := json.Unmarshal([]byte(in), &got); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}
}

func TestFilterValueRoundTrip(t *testing.T) {
	var filter SearchFilter
	in := `{"affiliation":"MIT","author":["A","B"],"day":null,"ampm":"AM"}`
	if err := json.Unmarshal([]byte(in), &filter); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if filter.Affiliation.Kind != FilterOne || filter.Author.Kind != FilterMany {
		t.Fatalf("unexpected kinds: %+v", filter)
	}
	if filter.Day.IsSet() {
		t.Fatal("day should be unset")
	}
	out, err := json.Marshal(filter)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back SearchFilter
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if !reflect.DeepEqual(filter.Author, back.Author) {
		t.Fatalf("author changed across round trip: %+v vs %+v", filter.Author, back.Author)
	}
}

func TestSubValues(t *testing.T) {
	got := SubValues(" MIT ; Stanford ;; ")
	want := []string{"MIT", "Stanford"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := SubValues(""); len(got) != 0 {
		t.Fatalf("empty field should yield no sub-values, got %v", got)
	}
}
