// Package commands implements CLI command handlers for codecouple.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/observability"
	"github.com/sumatoshi-tech/codecouple/internal/query"
	"github.com/sumatoshi-tech/codecouple/internal/store"
)

// ErrEntityNotFound is returned when a CLI-supplied path does not match any
// stored entity for the repository.
var ErrEntityNotFound = errors.New("entity not found")

// defaultDataDir is where a repository's SQLite/Parquet/snapshot artifacts
// live when --data-dir is not given.
const defaultDataDir = ".codecouple"

func dataDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir == "" {
		dir = defaultDataDir
	}

	return dir
}

func repoIDFlag(cmd *cobra.Command) string {
	repoID, _ := cmd.Flags().GetString("repo-id")
	if repoID == "" {
		repoID = filepath.Base(mustAbs("."))
	}

	return repoID
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return abs
}

// openQueryAPI opens the on-disk store for dataDir and binds a read-only,
// RED-instrumented QueryAPI to it. The returned close func must run once the
// caller is done; it shuts down both the store and the observability
// providers bound to the API.
func openQueryAPI(ctx context.Context, dataDir string) (*query.API, func(), error) {
	s, err := store.Open(ctx, dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store at %s: %w", dataDir, err)
	}

	providers, err := initObservability()
	if err != nil {
		_ = s.Close()

		return nil, nil, fmt.Errorf("init observability: %w", err)
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		_ = s.Close()
		_ = providers.Shutdown(ctx)

		return nil, nil, fmt.Errorf("create RED metrics: %w", err)
	}

	api := query.New(s, dataDir).WithMetrics(red)

	closeFn := func() {
		_ = s.Close()
		_ = providers.Shutdown(context.WithoutCancel(ctx))
	}

	return api, closeFn, nil
}

// newTable returns a go-pretty table.Writer preconfigured with the
// borderless style used throughout codecouple's CLI output.
func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = true

	return tbl
}

func progressf(quiet bool, w io.Writer, format string, args ...any) {
	if quiet {
		return
	}

	fmt.Fprintf(w, "progress: "+format+"\n", args...)
}

// resolveEntity looks up exactly one entity matching path. CLI commands
// take a human-typed path rather than the internal int64 entity id, so
// every path-based command resolves through this before querying.
func resolveEntity(ctx context.Context, api *query.API, repoID, path string) (model.Entity, error) {
	entities, err := api.FileTree(ctx, repoID, query.FileTreeQuery{Search: path, Limit: 50})
	if err != nil {
		return model.Entity{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	for _, e := range entities {
		if e.QualifiedName == path {
			return e, nil
		}
	}

	if len(entities) == 1 {
		return entities[0], nil
	}

	return model.Entity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, path)
}

func registerStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Directory holding the repository's analysis store (default: .codecouple)")
	cmd.Flags().String("repo-id", "", "Repository identifier (default: current directory name)")
}
