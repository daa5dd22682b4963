package store

import "sort"

// index maps derived keys (for example "symbol:AAPL") to the ids sharing them.
// A reverse map from id to keys lets updates replace an id's keys without
// leaving stale entries behind. Not safe for concurrent use.
type index struct {
	byKey map[string]map[string]struct{}
	byID  map[string][]string
}

func newIndex() *index {
	return &index{
		byKey: make(map[string]map[string]struct{}),
		byID:  make(map[string][]string),
	}
}

// set replaces the keys of id.
func (x *index) set(id string, keys []string) {
	x.remove(id)
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		ids, ok := x.byKey[k]
		if !ok {
			ids = make(map[string]struct{})
			x.byKey[k] = ids
		}
		ids[id] = struct{}{}
	}
	x.byID[id] = append([]string(nil), keys...)
}

// remove drops id from every key and reports whether it was indexed.
func (x *index) remove(id string) bool {
	keys, ok := x.byID[id]
	if !ok {
		return false
	}
	for _, k := range keys {
		ids := x.byKey[k]
		delete(ids, id)
		if len(ids) == 0 {
			delete(x.byKey, k)
		}
	}
	delete(x.byID, id)
	return true
}

// lookup returns the sorted ids under key.
func (x *index) lookup(key string) []string {
	ids := x.byKey[key]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// count returns the number of ids under key.
func (x *index) count(key string) int { return len(x.byKey[key]) }

func (x *index) keysOf(id string) []string { return x.byID[id] }

func (x *index) size() int { return len(x.byID) }

func (x *index) keyCount() int { return len(x.byKey) }
