package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sumatoshi-tech/codecouple/internal/extract"
)

func TestValidatePath_AcceptsOrdinaryPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, extract.InvalidPathReason(""), extract.ValidatePath("internal/edge/builder.go"))
}

func TestValidatePath_RejectsBareChangeCode(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"A", "M", "D"} {
		assert.Equal(t, extract.ReasonChangeCode, extract.ValidatePath(code))
	}
}

func TestValidatePath_RejectsLeakedEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, extract.ReasonEmail, extract.ValidatePath("dev@example.com"))
}

func TestValidatePath_RejectsDevNullSentinel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, extract.ReasonSentinel, extract.ValidatePath("/dev/null"))
}

func TestValidatePath_RejectsControlChars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, extract.ReasonControlChars, extract.ValidatePath("foo\x00bar"))
}
