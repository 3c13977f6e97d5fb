package patch

import (
	"encoding/json"
	"testing"
)

type profilePatch struct {
	Bio   Field[string]   `json:"bio"`
	Tags  Field[[]string] `json:"tags"`
	Title Field[string]   `json:"title"`
}

func TestFieldDistinguishesAbsentNullAndValue(t *testing.T) {
	var p profilePatch
	if err := json.Unmarshal([]byte(`{"bio":null,"tags":["a","b"]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !p.Bio.Set || !p.Bio.Null {
		t.Fatalf("bio should be present and null: %+v", p.Bio)
	}
	if tags, ok := p.Tags.Get(); !ok || len(tags) != 2 {
		t.Fatalf("tags should carry two values: %+v", p.Tags)
	}
	if p.Title.Set {
		t.Fatalf("title was absent and must not be marked set")
	}
}

func TestApplyNullable(t *testing.T) {
	current := "old"
	dst := &current

	if (Field[string]{}).ApplyNullable(&dst) {
		t.Fatalf("absent field must not change destination")
	}
	if dst == nil || *dst != "old" {
		t.Fatalf("destination changed unexpectedly")
	}

	if !Of("new").ApplyNullable(&dst) || *dst != "new" {
		t.Fatalf("expected destination to be replaced")
	}
	if !Null[string]().ApplyNullable(&dst) || dst != nil {
		t.Fatalf("explicit null must clear destination")
	}
}

func TestApplyIgnoresNull(t *testing.T) {
	title := "keep"
	if Null[string]().Apply(&title) {
		t.Fatalf("null must not be applied to a non-nullable destination")
	}
	if !Of("changed").Apply(&title) || title != "changed" {
		t.Fatalf("expected value to be applied, got %q", title)
	}
}

func TestInvalidPayloadFails(t *testing.T) {
	var p profilePatch
	if err := json.Unmarshal([]byte(`{"tags":"not-a-list"}`), &p); err == nil {
		t.Fatalf("expected type error")
	}
}
