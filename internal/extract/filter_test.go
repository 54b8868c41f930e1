package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sumatoshi-tech/codecouple/internal/extract"
)

func TestPathFilter_NoPatternsAllowsEverything(t *testing.T) {
	t.Parallel()

	f := extract.NewPathFilter(nil, nil)
	assert.True(t, f.Allowed("internal/edge/builder.go"))
}

func TestPathFilter_IncludeRestrictsToMatches(t *testing.T) {
	t.Parallel()

	f := extract.NewPathFilter([]string{"*.go"}, nil)

	assert.True(t, f.Allowed("main.go"))
	assert.False(t, f.Allowed("README.md"))
}

func TestPathFilter_ExcludeOverridesInclude(t *testing.T) {
	t.Parallel()

	f := extract.NewPathFilter([]string{"*"}, []string{"*.lock"})

	assert.True(t, f.Allowed("go.sum"))
	assert.False(t, f.Allowed("go.sum.lock"))
}

func TestPathFilter_ExcludeMatchesBaseName(t *testing.T) {
	t.Parallel()

	f := extract.NewPathFilter(nil, []string{"*.lock"})

	assert.False(t, f.Allowed("vendor/foo/go.sum.lock"), "exclude globs match basename, not just the full path")
}
