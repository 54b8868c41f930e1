// Package parquet stores the raw commit and change history columnar,
// separate from SQLite — this is the data HistoryExtractor appends and
// ChangesetShaper streams back sequentially, never point-queried, so a
// row-group-compressed columnar format keeps re-runs cheap.
package parquet

import (
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

const parallelism = 4

// commitsFile is the file name within a repository's store directory.
const commitsFile = "commits.parquet"

// CommitRow is the on-disk parquet schema for model.Commit. ParentOids are
// joined with a NUL separator rather than using a LIST group, keeping the
// schema flat and the reader dependency-free of list-reassembly edge cases.
type CommitRow struct {
	Oid         string `parquet:"name=oid, type=BYTE_ARRAY, convertedtype=UTF8"`
	AuthorID    int64  `parquet:"name=author_id, type=INT64"`
	AuthorTS    int64  `parquet:"name=author_ts, type=INT64"`
	CommitterID int64  `parquet:"name=committer_id, type=INT64"`
	CommitterTS int64  `parquet:"name=committer_ts, type=INT64"`
	Subject     string `parquet:"name=subject, type=BYTE_ARRAY, convertedtype=UTF8"`
	ParentOids  string `parquet:"name=parent_oids, type=BYTE_ARRAY, convertedtype=UTF8"`
	FileCount   int32  `parquet:"name=file_count, type=INT32"`
	IsMerge     bool   `parquet:"name=is_merge, type=BOOLEAN"`
}

const parentOidSep = "\x00"

func toCommitRow(c model.Commit) CommitRow {
	return CommitRow{
		Oid: c.Oid, AuthorID: c.AuthorID, AuthorTS: c.AuthorTS,
		CommitterID: c.CommitterID, CommitterTS: c.CommitterTS, Subject: c.Subject,
		ParentOids: strings.Join(c.ParentOids, parentOidSep),
		FileCount:  c.FileCount, IsMerge: c.IsMerge,
	}
}

func fromCommitRow(r CommitRow) model.Commit {
	var parents []string
	if r.ParentOids != "" {
		parents = strings.Split(r.ParentOids, parentOidSep)
	}

	return model.Commit{
		Oid: r.Oid, AuthorID: r.AuthorID, AuthorTS: r.AuthorTS,
		CommitterID: r.CommitterID, CommitterTS: r.CommitterTS, Subject: r.Subject,
		ParentOids: parents, FileCount: r.FileCount, IsMerge: r.IsMerge,
	}
}

// WriteCommits overwrites dir/commits.parquet with the given rows.
func WriteCommits(dir string, commits []model.Commit) error {
	path := dir + "/" + commitsFile

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open commits writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(CommitRow), parallelism)
	if err != nil {
		return fmt.Errorf("create commits parquet writer: %w", err)
	}

	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range commits {
		row := toCommitRow(c)
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write commit row %s: %w", c.Oid, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("flush commits parquet: %w", err)
	}

	return nil
}

// ReadCommits loads every row of dir/commits.parquet.
func ReadCommits(dir string) ([]model.Commit, error) {
	path := dir + "/" + commitsFile

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open commits reader: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(CommitRow), parallelism)
	if err != nil {
		return nil, fmt.Errorf("create commits parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	rows := make([]CommitRow, num)

	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read commits rows: %w", err)
	}

	out := make([]model.Commit, 0, num)
	for _, r := range rows {
		out = append(out, fromCommitRow(r))
	}

	return out, nil
}
