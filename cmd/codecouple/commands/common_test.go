package commands_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumatoshi-tech/codecouple/cmd/codecouple/commands"
)

func TestStoreFlags_RegisteredOnEveryDataCommand(t *testing.T) {
	t.Parallel()

	for _, newCmd := range []func() *cobra.Command{
		commands.NewHotspotsCommand,
		commands.NewCouplingCommand,
		commands.NewHistoryCommand,
		commands.NewCompareCommand,
		commands.NewAnalyzeCommand,
		commands.NewSnapshotCommand,
	} {
		cmd := newCmd()

		for _, flagName := range []string{"data-dir", "repo-id"} {
			flag := cmd.Flags().Lookup(flagName)
			require.NotNilf(t, flag, "%s must register --%s", cmd.Name(), flagName)
		}
	}
}

func TestHotspotsCommand_LimitFlagDefault(t *testing.T) {
	t.Parallel()

	cmd := commands.NewHotspotsCommand()

	flag := cmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestCouplingCommand_AcceptsZeroOrOneArg(t *testing.T) {
	t.Parallel()

	cmd := commands.NewCouplingCommand()

	assert.NoError(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"internal/edge/builder.go"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestHistoryCommand_RequiresExactlyOneArg(t *testing.T) {
	t.Parallel()

	cmd := commands.NewHistoryCommand()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"internal/edge/builder.go"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestCompareCommand_RequiresExactlyTwoArgs(t *testing.T) {
	t.Parallel()

	cmd := commands.NewCompareCommand()

	assert.Error(t, cmd.Args(cmd, []string{"only-one"}))
	assert.NoError(t, cmd.Args(cmd, []string{"snap-a", "snap-b"}))
}

func TestSnapshotCommand_HasListAndRenameSubcommands(t *testing.T) {
	t.Parallel()

	cmd := commands.NewSnapshotCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	assert.True(t, names["list"])
	assert.True(t, names["rename"])
}

func TestEntityNotFoundError_IsASentinel(t *testing.T) {
	t.Parallel()

	require.Error(t, commands.ErrEntityNotFound)
	assert.Contains(t, commands.ErrEntityNotFound.Error(), "not found")
}
