package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMerge_EmptyOverlayIsIdentity(t *testing.T) {
	base := Context{
		"destination": "부산",
		"duration":    "3일",
		"preferences": map[string]any{"budget": "200000", "activities": []any{"해변"}},
	}

	got := Merge(base, Context{})

	if diff := cmp.Diff(base, got); diff != "" {
		t.Fatalf("merge with empty overlay changed context (-want +got):\n%s", diff)
	}
}

func TestMerge_Precedence(t *testing.T) {
	base := Context{"destination": "제주도", "duration": "2일", "departure_location": "서울"}
	overlay := Context{"destination": "부산", "duration": "", "departure_location": nil, "departure_date": "2024-05-01"}

	got := Merge(base, overlay)

	want := Context{
		"destination":        "부산",
		"duration":           "2일",
		"departure_location": "서울",
		"departure_date":     "2024-05-01",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected merge result (-want +got):\n%s", diff)
	}
}

func TestMerge_NestedMappings(t *testing.T) {
	base := Context{
		"preferences": map[string]any{"budget": "100만원", "activities": []any{"등산"}},
	}
	overlay := Context{
		"preferences": map[string]any{"budget": "", "accommodation": "호텔", "activities": []any{}},
	}

	got := Merge(base, overlay)

	want := Context{
		"preferences": map[string]any{"budget": "100만원", "activities": []any{"등산"}, "accommodation": "호텔"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected nested merge (-want +got):\n%s", diff)
	}
}

func TestMerge_MappingReplacesScalarWithoutBlanks(t *testing.T) {
	base := Context{"preferences": "아무거나", "keep": "x"}
	overlay := Context{
		"preferences": map[string]any{"budget": "", "transportation": "렌터카"},
		"keep":        map[string]any{"a": ""},
	}

	got := Merge(base, overlay)

	want := Context{
		"preferences": map[string]any{"transportation": "렌터카"},
		"keep":        "x",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected merge (-want +got):\n%s", diff)
	}
}

func TestMerge_NumbersAndBoolsAreNeverBlank(t *testing.T) {
	got := Merge(Context{"count": 3, "flag": true}, Context{"count": 0, "flag": false})

	assert.Equal(t, 0, got["count"])
	assert.Equal(t, false, got["flag"])
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	base := Context{"preferences": map[string]any{"budget": "1"}}
	overlay := Context{"tags": []any{"a"}}

	got := Merge(base, overlay)
	got["preferences"].(map[string]any)["budget"] = "changed"
	got["tags"].([]any)[0] = "b"

	assert.Equal(t, "1", base["preferences"].(map[string]any)["budget"])
	assert.Equal(t, "a", overlay["tags"].([]any)[0])
}

func TestMerge_NilBase(t *testing.T) {
	got := Merge(nil, Context{"destination": "부산", "empty": ""})
	assert.Equal(t, Context{"destination": "부산"}, got)
}

func TestMerge_FoldMatchesReplay(t *testing.T) {
	overlays := []Context{
		{"destination": "부산"},
		{"duration": "3일", "preferences": map[string]any{"budget": "20만원"}},
		{"destination": "", "preferences": map[string]any{"activities": []any{"맛집"}}},
	}

	folded := Context{}
	for _, o := range overlays {
		folded = Merge(folded, o)
	}

	grouped := Merge(Context{}, Merge(Merge(Context{}, overlays[0]), overlays[1]))
	grouped = Merge(grouped, overlays[2])

	if diff := cmp.Diff(folded, grouped); diff != "" {
		t.Fatalf("replay diverged (-fold +replay):\n%s", diff)
	}
	assert.Equal(t, "부산", folded["destination"])
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"text", "x", false},
		{"empty slice", []any{}, true},
		{"empty string slice", []string{}, true},
		{"slice", []any{"a"}, false},
		{"blank map", map[string]any{"a": "", "b": nil}, true},
		{"map", map[string]any{"a": "x"}, false},
		{"zero", 0, false},
		{"false", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlank(tt.value))
		})
	}
}

func TestContext_Has(t *testing.T) {
	c := Context{
		"destination":  "부산",
		"duration":     "",
		"preferences":  map[string]any{"budget": "100만원", "activities": []any{}},
		"literal.key":  "v",
		"scalarparent": "x",
	}

	assert.True(t, c.Has("destination"))
	assert.False(t, c.Has("duration"))
	assert.False(t, c.Has("departure_date"))
	assert.True(t, c.Has("preferences.budget"))
	assert.False(t, c.Has("preferences.activities"))
	assert.False(t, c.Has("preferences.accommodation"))
	assert.True(t, c.Has("literal.key"))
	assert.False(t, c.Has("scalarparent.child"))
}

func TestContext_SetAndGet(t *testing.T) {
	c := Context{}
	c.Set("destination", "부산")
	c.Set("preferences.budget", "20만원")
	c.Set("preferences.accommodation", "호텔")
	c.Set("ignored", nil)

	v, ok := c.Get("preferences.budget")
	assert.True(t, ok)
	assert.Equal(t, "20만원", v)
	assert.Equal(t, "호텔", c.String("preferences.accommodation"))
	assert.Equal(t, "부산", c.String("destination"))
	_, ok = c.Get("ignored")
	assert.False(t, ok)
	assert.Equal(t, Context{"budget": "20만원", "accommodation": "호텔"}, c.Map("preferences"))
	assert.Equal(t, Context{}, c.Map("missing"))
}

func TestContext_String(t *testing.T) {
	c := Context{"n": 3, "s": "x"}
	assert.Equal(t, "3", c.String("n"))
	assert.Equal(t, "x", c.String("s"))
	assert.Equal(t, "", c.String("missing"))
}
