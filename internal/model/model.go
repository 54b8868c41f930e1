// Package model defines the persistent and transient data types shared by
// every stage of the coupling-mining pipeline: extraction, changeset
// shaping, edge building, clustering, storage and querying.
package model

import "time"

// EntityKind classifies what an Entity refers to.
type EntityKind string

const (
	EntityFile     EntityKind = "file"
	EntityFolder   EntityKind = "folder"
	EntityModule   EntityKind = "module"
	EntityExternal EntityKind = "external"
)

// EntityStats is the metadata bag attached to an Entity: running totals
// updated as commits are processed.
type EntityStats struct {
	TotalCommits  int
	FirstChangeAt time.Time
	LastChangeAt  time.Time
	Authors       map[string]int // author id -> commit count
	Insertions    int64
	Deletions     int64
}

// Entity is the identity for anything the engine references: a file,
// folder, module or external reference. The tuple (RepoID, Kind,
// QualifiedName) is unique within a repository; ids are never reused and
// entities are append-only — once assigned, an id's row is never deleted,
// only its stats are updated.
type Entity struct {
	ID            int64
	RepoID        string
	Kind          EntityKind
	QualifiedName string // canonical path for files; current path at HEAD.
	Language      string
	ParentID      *int64 // nullable: containing folder/module entity id.
	Stats         EntityStats
	ExistsAtHead  bool
}

// FileLineage links an entity to a prior path it held before a rename or
// copy. Lineage chains are acyclic: following OldEntityID repeatedly must
// terminate, never cycle back to NewEntityID.
type FileLineage struct {
	ID     int64
	RepoID string
	// OldEntityID and NewEntityID are equal for a Rename: the logical id is
	// stable across a path change, and the row exists only as a historical
	// record of the path transition. They differ for a Copy, where the new
	// path starts a fresh logical chain whose provenance is recorded here.
	OldEntityID  int64
	NewEntityID  int64
	OldPath      string
	NewPath      string
	CommitOid    string
	Similarity   int // libgit2 similarity score, 0-100.
	DetectedKind ChangeType
}

// ChangeType enumerates the kinds of per-file events recorded in Change
// and FileLineage rows.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
	ChangeRename ChangeType = "rename"
	ChangeCopy   ChangeType = "copy"
)

// Commit is one row of the columnar commits table, stored in parquet for
// streaming scans.
type Commit struct {
	Oid          string
	AuthorID     int64
	AuthorTS     int64
	CommitterID  int64
	CommitterTS  int64
	Subject      string
	ParentOids   []string
	FileCount    int32
	IsMerge      bool
}

// Change is a per-commit, per-file event, stored columnar alongside Commit.
type Change struct {
	CommitOid   string
	EntityID    int64
	ChangeType  ChangeType
	Insertions  int32
	Deletions   int32
	OldEntityID *int64 // set for rename/copy.
}

// LogicalChangeset groups one or more Changes treated as a single coupling
// event. It is transient: produced by the ChangesetShaper, consumed by the
// EdgeBuilder, and never persisted beyond the run (spillable to disk under
// memory pressure, but not to the long-lived store).
type LogicalChangeset struct {
	GroupKey  string // commit oid, or a synthetic key for grouped modes.
	EntityIDs []int64
	Weight    float64   // in (0, 1]; 1/log2(|files|+1).
	Time      time.Time // representative time (latest member commit), used for decay_half_life_days.
}

// Cardinality returns the number of distinct entities in the changeset.
func (c LogicalChangeset) Cardinality() int {
	return len(c.EntityIDs)
}

// RelationshipSourceType classifies how a Relationship edge was derived.
type RelationshipSourceType string

const (
	SourceGit      RelationshipSourceType = "git"
	SourceDeps     RelationshipSourceType = "deps"
	SourceSemantic RelationshipSourceType = "semantic"
)

// RelationshipKind names the specific edge semantics within a source type.
type RelationshipKind string

// CoChanged is the only RelationshipKind produced for SourceGit edges.
const CoChanged RelationshipKind = "CO_CHANGED"

// RelationshipMetadata carries the coupling statistics computed by the
// EdgeBuilder for a single pair.
type RelationshipMetadata struct {
	Support        int // max(support_src, support_dst); both per-endpoint supports are stored too.
	SupportSrc     int
	SupportDst     int
	PairCount      int
	PDstGivenSrc   float64
	PSrcGivenDst   float64
	JaccardWeight  *float64 // jaccard_weighted, nil only when neither endpoint has accumulated changeset weight.
	DecayedWeight  *float64 // present when decay_half_life_days is configured.
}

// Relationship is an undirected edge between two entities. Exactly one row
// exists per unordered pair within a run; SrcID < DstID canonically, so
// queries must search both endpoints. Edges are rebuilt wholesale every run.
type Relationship struct {
	ID         int64
	RepoID     string
	RunID      string
	SourceType RelationshipSourceType
	Kind       RelationshipKind
	SrcID      int64
	DstID      int64
	Weight     float64 // primary metric: jaccard.
	Metadata   RelationshipMetadata
}

// ComponentEdge is a Relationship aggregated at folder/component granularity.
type ComponentEdge struct {
	ID                 int64
	RepoID             string
	RunID              string
	SrcComponent       string
	DstComponent       string
	ComponentPairCount int
	ComponentJaccard   float64
}

// TaskState is the lifecycle state of an AnalysisTask.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStage names which pipeline stage an AnalysisTask is currently in.
type TaskStage string

const (
	StageExtract    TaskStage = "extract"
	StageChangeset  TaskStage = "changeset"
	StageEdge       TaskStage = "edge"
	StageCluster    TaskStage = "cluster"
	StageDone       TaskStage = "done"
)

// AnalysisTask tracks one run of the pipeline. The Orchestrator is the
// sole writer of task rows; every other component only reads them.
type AnalysisTask struct {
	TaskID             string
	RepoID             string
	AnalyzerType       string
	ConfigJSON         string
	State              TaskState
	Stage              TaskStage
	Progress           float64 // in [0, 1].
	Processed          int64
	Total              int64
	EntityCount        int64
	RelationshipCount  int64
	StartedAt          time.Time
	FinishedAt         *time.Time
	Error              string
}

// HotFile is a per-cluster hot-spot entry: an entity ranked by churn.
type HotFile struct {
	Path  string
	Churn int64
}

// TopCommit is a per-cluster commit ranked by how many cluster members it
// touched.
type TopCommit struct {
	Oid       string
	Message   string
	Author    string
	FileCount int
}

// CommonAuthor is a per-cluster author ranked by commit count against
// cluster members.
type CommonAuthor struct {
	Name        string
	Email       string
	CommitCount int
}

// Cluster is one group emitted by a Clusterer run.
type Cluster struct {
	ID           int
	Name         string
	MemberIDs    []int64
	Size         int
	TotalChurn   int64
	AvgCoupling  float64
	HotFiles     []HotFile
	TopCommits   []TopCommit
	CommonAuthors []CommonAuthor
}

// ClusteringSnapshot is an immutable record of one clustering run, taken at
// a specific repository head. Name and Tags may be edited after the fact;
// everything else is fixed at creation.
type ClusteringSnapshot struct {
	SnapshotID  string
	RepoID      string
	Name        string
	Tags        []string
	Algorithm   string
	Parameters  map[string]any
	CreatedAt   time.Time
	RepoHeadOid string
	Clusters    []Cluster
}

// Severity classifies a ValidationLog entry's impact.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ValidationLog is appended whenever extraction skips or degrades a
// record. It is the only diagnostic surface for partial-failure data loss,
// so entries should name the rejected input, not just the stage.
type ValidationLog struct {
	ID        int64
	RepoID    string
	CommitOid string
	Stage     TaskStage
	Reason    string
	Severity  Severity
	CreatedAt time.Time
}
