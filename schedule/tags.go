package schedule

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

type tag struct{ key, value string }

func tagSet(tags map[string]string) mapset.Set[tag] {
	s := mapset.NewThreadUnsafeSetWithSize[tag](len(tags))
	for k, v := range tags {
		s.Add(tag{k, v})
	}
	return s
}

// DiffTags compares tag pairs. A changed value shows up on both sides: the
// key is removed and then added again with its new value.
func DiffTags(previous, desired map[string]string) (add map[string]string, remove []string) {
	prev, want := tagSet(previous), tagSet(desired)

	for t := range want.Difference(prev).Iter() {
		if add == nil {
			add = make(map[string]string)
		}
		add[t.key] = t.value
	}
	for t := range prev.Difference(want).Iter() {
		remove = append(remove, t.key)
	}
	sort.Strings(remove)
	return add, remove
}
