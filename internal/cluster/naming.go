package cluster

import "strings"

// commonDirPrefix returns the longest shared leading sequence of "/"
// segments across paths, excluding the final segment of each (a file
// basename never counts toward a shared directory). Returns "" when paths
// share nothing.
func commonDirPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	split := make([][]string, len(paths))

	for i, p := range paths {
		segs := strings.Split(p, "/")
		if len(segs) > 0 {
			segs = segs[:len(segs)-1] // drop basename
		}

		split[i] = segs
	}

	shortest := split[0]

	for _, s := range split[1:] {
		if len(s) < len(shortest) {
			shortest = s
		}
	}

	var common []string

	for i := range shortest {
		seg := shortest[i]

		agree := true

		for _, s := range split {
			if s[i] != seg {
				agree = false

				break
			}
		}

		if !agree {
			break
		}

		common = append(common, seg)
	}

	return strings.Join(common, "/")
}
