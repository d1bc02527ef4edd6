package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCanonical_SortsKeysRecursively(t *testing.T) {
	a := mustExpr(t, `{"b": 2, "a": {"z": 1, "y": [{"q": 1, "p": 2}]}}`)
	got, err := Canonical(a)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"a":{"y":[{"p":2,"q":1}],"z":1},"b":2}`
	if string(got) != want {
		t.Errorf("Canonical() = %s, want %s", got, want)
	}
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := Canonical(map[string]any{"status": "<a&b>"})
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if string(got) != `{"status":"<a&b>"}` {
		t.Errorf("Canonical() = %s", got)
	}
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a := mustExpr(t, `{"a": 1, "b": 2}`)
	b := mustExpr(t, `{"b": 2, "a": 1}`)

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fa != fb {
		t.Errorf("fingerprints differ: %s vs %s", fa, fb)
	}
	if len(fa) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fa))
	}
}

func TestFingerprint_DistinguishesContent(t *testing.T) {
	fa, _ := Fingerprint(map[string]any{"status": "published"})
	fb, _ := Fingerprint(map[string]any{"status": "draft"})
	if fa == fb {
		t.Error("different filters produced the same fingerprint")
	}
}

func TestFingerprint_IntegerAndFloatAgree(t *testing.T) {
	fa, _ := Fingerprint(map[string]any{"age": map[string]any{"gte": 18}})
	fb, _ := Fingerprint(map[string]any{"age": map[string]any{"gte": 18.0}})
	if fa != fb {
		t.Error("18 and 18.0 should fingerprint identically")
	}
}

func TestQuery_CanonicalMatchesFunction(t *testing.T) {
	q := mustQuery(t, `{"status": "x", "age": {"gt": 1}}`)
	fromQuery, err := q.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	canon, _ := q.Canonical()
	if FingerprintCanonical(canon) != fromQuery {
		t.Error("FingerprintCanonical(Canonical()) != Fingerprint()")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	canon := []byte(`{"$or":[{"a":1},{"b":"x"}]}`)
	expr, err := Parse(canon)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	again, _ := Canonical(expr)
	if string(again) != string(canon) {
		t.Errorf("round trip = %s", again)
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

// buildJSON writes an object literal with keys in the given order.
func buildJSON(keys []string, vals []int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q: {\"gte\": %d}", k, vals[i%len(vals)])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func TestProperty_Canonical(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("canonicalizing twice is idempotent", prop.ForAll(
		func(keys []string, vals []int) bool {
			if len(keys) == 0 || len(vals) == 0 {
				return true
			}
			var expr map[string]any
			if err := json.Unmarshal([]byte(buildJSON(keys, vals)), &expr); err != nil {
				return false
			}
			once, err := Canonical(expr)
			if err != nil {
				return false
			}
			decoded, err := Parse(once)
			if err != nil {
				return false
			}
			twice, err := Canonical(decoded)
			if err != nil {
				return false
			}
			return string(once) == string(twice)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.Property("key order does not change the fingerprint", prop.ForAll(
		func(keys []string, vals []int) bool {
			if len(keys) == 0 || len(vals) == 0 {
				return true
			}
			// Duplicate keys would make the two texts carry different last-wins values.
			seen := make(map[string]bool)
			for _, k := range keys {
				if seen[k] {
					return true
				}
				seen[k] = true
			}
			var a, b map[string]any
			if err := json.Unmarshal([]byte(buildJSON(keys, vals)), &a); err != nil {
				return false
			}
			rev := reversed(keys)
			revVals := make([]int, len(keys))
			for i := range keys {
				revVals[len(keys)-1-i] = vals[i%len(vals)]
			}
			if err := json.Unmarshal([]byte(buildJSON(rev, revVals)), &b); err != nil {
				return false
			}
			fa, errA := Fingerprint(a)
			fb, errB := Fingerprint(b)
			return errA == nil && errB == nil && fa == fb
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
