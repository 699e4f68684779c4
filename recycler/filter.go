package recycler

// InstanceFilter accepts or rejects instance ids by allow/deny lists.
// Reconfigurable only at daemon construction.
type InstanceFilter struct {
	whitelist map[string]struct{}
	blacklist map[string]struct{}
}

// NewInstanceFilter builds a filter from configured id lists.
func NewInstanceFilter(whitelist, blacklist []string) InstanceFilter {
	f := InstanceFilter{
		whitelist: toSet(whitelist),
		blacklist: toSet(blacklist),
	}
	return f
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// FilterOut reports whether id should be rejected: if the whitelist is
// non-empty, anything not in it is rejected; otherwise anything in the
// blacklist is rejected; otherwise the id is accepted.
func (f InstanceFilter) FilterOut(id string) bool {
	if len(f.whitelist) > 0 {
		_, ok := f.whitelist[id]
		return !ok
	}
	_, blocked := f.blacklist[id]
	return blocked
}
