package parquet

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

const changesFile = "changes.parquet"

// ChangeRow is the on-disk parquet schema for model.Change. OldEntityID is
// stored with a presence flag rather than parquet-go's optional-field
// pointer support, which is awkward to round-trip through the generic
// Read(&[]T) path.
type ChangeRow struct {
	CommitOid    string `parquet:"name=commit_oid, type=BYTE_ARRAY, convertedtype=UTF8"`
	EntityID     int64  `parquet:"name=entity_id, type=INT64"`
	ChangeType   string `parquet:"name=change_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Insertions   int32  `parquet:"name=insertions, type=INT32"`
	Deletions    int32  `parquet:"name=deletions, type=INT32"`
	HasOldEntity bool   `parquet:"name=has_old_entity, type=BOOLEAN"`
	OldEntityID  int64  `parquet:"name=old_entity_id, type=INT64"`
}

func toChangeRow(c model.Change) ChangeRow {
	row := ChangeRow{
		CommitOid: c.CommitOid, EntityID: c.EntityID, ChangeType: string(c.ChangeType),
		Insertions: c.Insertions, Deletions: c.Deletions,
	}

	if c.OldEntityID != nil {
		row.HasOldEntity = true
		row.OldEntityID = *c.OldEntityID
	}

	return row
}

func fromChangeRow(r ChangeRow) model.Change {
	c := model.Change{
		CommitOid: r.CommitOid, EntityID: r.EntityID, ChangeType: model.ChangeType(r.ChangeType),
		Insertions: r.Insertions, Deletions: r.Deletions,
	}

	if r.HasOldEntity {
		id := r.OldEntityID
		c.OldEntityID = &id
	}

	return c
}

// WriteChanges overwrites dir/changes.parquet with the given rows.
func WriteChanges(dir string, changes []model.Change) error {
	path := dir + "/" + changesFile

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open changes writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(ChangeRow), parallelism)
	if err != nil {
		return fmt.Errorf("create changes parquet writer: %w", err)
	}

	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range changes {
		row := toChangeRow(c)
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write change row for %s: %w", c.CommitOid, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("flush changes parquet: %w", err)
	}

	return nil
}

// ReadChanges loads every row of dir/changes.parquet.
func ReadChanges(dir string) ([]model.Change, error) {
	path := dir + "/" + changesFile

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open changes reader: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ChangeRow), parallelism)
	if err != nil {
		return nil, fmt.Errorf("create changes parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	rows := make([]ChangeRow, num)

	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read changes rows: %w", err)
	}

	out := make([]model.Change, 0, num)
	for _, r := range rows {
		out = append(out, fromChangeRow(r))
	}

	return out, nil
}
