package store

// schema is applied idempotently on every Open via CREATE TABLE/INDEX IF NOT
// EXISTS, matching internal/model's shapes one-for-one. commits/changes live
// in parquet (see internal/store/parquet) and are not duplicated here.
const schema = `
CREATE TABLE IF NOT EXISTS repo_meta (
	repo_id TEXT PRIMARY KEY,
	head_oid TEXT NOT NULL DEFAULT '',
	last_extracted_at DATETIME
);

CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	parent_id INTEGER,
	total_commits INTEGER NOT NULL DEFAULT 0,
	first_change_at DATETIME,
	last_change_at DATETIME,
	insertions INTEGER NOT NULL DEFAULT 0,
	deletions INTEGER NOT NULL DEFAULT 0,
	authors_json TEXT NOT NULL DEFAULT '{}',
	exists_at_head INTEGER NOT NULL DEFAULT 1,
	UNIQUE (repo_id, kind, qualified_name)
);

CREATE INDEX IF NOT EXISTS idx_entities_repo ON entities(repo_id);
CREATE INDEX IF NOT EXISTS idx_entities_repo_head ON entities(repo_id, exists_at_head);

CREATE TABLE IF NOT EXISTS file_lineage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id TEXT NOT NULL,
	old_entity_id INTEGER NOT NULL,
	new_entity_id INTEGER NOT NULL,
	old_path TEXT NOT NULL,
	new_path TEXT NOT NULL,
	commit_oid TEXT NOT NULL,
	similarity INTEGER NOT NULL,
	detected_kind TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lineage_new ON file_lineage(new_entity_id);
CREATE INDEX IF NOT EXISTS idx_lineage_old ON file_lineage(old_entity_id);

CREATE TABLE IF NOT EXISTS relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	kind TEXT NOT NULL,
	src_id INTEGER NOT NULL,
	dst_id INTEGER NOT NULL,
	weight REAL NOT NULL,
	support INTEGER NOT NULL,
	support_src INTEGER NOT NULL,
	support_dst INTEGER NOT NULL,
	pair_count INTEGER NOT NULL,
	p_dst_given_src REAL NOT NULL,
	p_src_given_dst REAL NOT NULL,
	jaccard_weighted REAL,
	decayed_weight REAL,
	CHECK (src_id < dst_id)
);

CREATE INDEX IF NOT EXISTS idx_rel_repo_run ON relationships(repo_id, run_id);
CREATE INDEX IF NOT EXISTS idx_rel_src ON relationships(src_id);
CREATE INDEX IF NOT EXISTS idx_rel_dst ON relationships(dst_id);

CREATE TABLE IF NOT EXISTS component_edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	src_component TEXT NOT NULL,
	dst_component TEXT NOT NULL,
	component_pair_count INTEGER NOT NULL,
	component_jaccard REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_component_edges_repo_run ON component_edges(repo_id, run_id);

CREATE TABLE IF NOT EXISTS analysis_tasks (
	task_id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL,
	analyzer_type TEXT NOT NULL,
	config_json TEXT NOT NULL DEFAULT '{}',
	state TEXT NOT NULL,
	stage TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	entity_count INTEGER NOT NULL DEFAULT 0,
	relationship_count INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_repo ON analysis_tasks(repo_id);

CREATE TABLE IF NOT EXISTS validation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id TEXT NOT NULL,
	commit_oid TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL,
	reason TEXT NOT NULL,
	severity TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validation_repo ON validation_log(repo_id);

CREATE TABLE IF NOT EXISTS clustering_snapshots (
	snapshot_id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	algorithm TEXT NOT NULL,
	parameters_json TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	repo_head_oid TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_repo ON clustering_snapshots(repo_id);
`

const currentSchemaVersion = 1
