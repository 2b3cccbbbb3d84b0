package exec

import (
	"github.com/kasuganosora/cynos/jsonb"
	"github.com/kasuganosora/cynos/value"
)

func jsonbFromValue(v value.Value) (jsonb.Value, error) {
	return jsonb.FromValue(v)
}

// jsonbContains implements the `@>` containment predicate: an object
// contains another object iff every key of probe is present in
// container with an equal (recursively containing) value; an array
// contains another array iff every element of probe appears somewhere
// in container; any other pair matches only if structurally equal.
func jsonbContains(container, probe jsonb.Value) bool {
	if container.IsObject() && probe.IsObject() {
		for _, e := range probe.Entries() {
			cv, ok := container.Get(e.Key)
			if !ok || !jsonbContains(cv, e.Val) {
				return false
			}
		}
		return true
	}
	if container.IsArray() && probe.IsArray() {
		celems, _ := container.AsArray()
		pelems, _ := probe.AsArray()
		for _, pe := range pelems {
			found := false
			for _, ce := range celems {
				if jsonbContains(ce, pe) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return jsonb.Equal(container, probe)
}
