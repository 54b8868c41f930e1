package extract

import (
	"regexp"
)

// devNullSentinel is git's own placeholder for the missing side of an
// add/delete diff (e.g. "a/dev/null" in unified diff headers). A path parser
// bug can leak this literal into the path column; reject it like any other
// malformed input.
const devNullSentinel = "/dev/null"

// changeCodeRegexp matches a bare single-letter change code (A, M, D) that
// has leaked into the path column — the classic symptom of a parser that
// split a "M\tpath" line on the wrong delimiter.
var changeCodeRegexp = regexp.MustCompile(`^[AMD]$`)

// emailRegexp is deliberately loose: field bugs that produce this symptom
// emit a raw author-email string in place of a path, and any string shaped
// like an email is exactly the kind of thing that can never be a real path.
var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InvalidPathReason names why a path failed validation, for ValidationLog.
type InvalidPathReason string

const (
	ReasonChangeCode   InvalidPathReason = "path_is_change_code"
	ReasonEmail        InvalidPathReason = "path_is_email"
	ReasonSentinel     InvalidPathReason = "path_is_sentinel"
	ReasonControlChars InvalidPathReason = "path_has_control_chars"
)

// ValidatePath reports why path should be rejected, or "" if it is acceptable.
// These rules are drawn directly from prior field bugs in parse output: a
// malformed parser can emit a change-code letter, an author email, or the
// git /dev/null sentinel in the path column, and control characters indicate
// a parser that lost track of field boundaries entirely.
func ValidatePath(path string) InvalidPathReason {
	if changeCodeRegexp.MatchString(path) {
		return ReasonChangeCode
	}

	if emailRegexp.MatchString(path) {
		return ReasonEmail
	}

	if path == devNullSentinel {
		return ReasonSentinel
	}

	for _, r := range path {
		if r < 0x20 {
			return ReasonControlChars
		}
	}

	return ""
}
