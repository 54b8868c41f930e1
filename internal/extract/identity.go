package extract

import "strings"

// identityIndex assigns stable small integer ids to author/committer
// signatures within one extraction run, matching by lower-cased email —
// the "exact signature" mode the teacher's identity detector supports,
// simplified to a single run-scoped table instead of a cross-run PeopleDict.
type identityIndex struct {
	ids  map[string]int64
	next int64
}

func newIdentityIndex() *identityIndex {
	return &identityIndex{ids: make(map[string]int64)}
}

func (idx *identityIndex) resolve(name, email string) int64 {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		key = "name:" + strings.ToLower(strings.TrimSpace(name))
	}

	if id, ok := idx.ids[key]; ok {
		return id
	}

	id := idx.next
	idx.ids[key] = id
	idx.next++

	return id
}
