// Package config provides configuration loading and validation for the
// codecouple analysis engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidMinRevisions     = errors.New("min_revisions must be positive")
	ErrInvalidMaxChangeset     = errors.New("max_changeset_size must be positive")
	ErrInvalidMaxLogicalSet    = errors.New("max_logical_changeset_size must be positive")
	ErrInvalidChangesetMode    = errors.New("unrecognized changeset_mode")
	ErrInvalidComponentDepth   = errors.New("component_depth must be positive")
	ErrInvalidTopK             = errors.New("topk_edges_per_file must be positive")
	ErrInvalidRenameSimilarity = errors.New("rename_similarity must be in (0, 1]")
	ErrInvalidAlgorithm        = errors.New("unrecognized clustering algorithm")
)

// ChangesetMode selects how raw commits are grouped into LogicalChangesets.
type ChangesetMode string

const (
	ChangesetByCommit           ChangesetMode = "by_commit"
	ChangesetByAuthorTimeWindow ChangesetMode = "by_author_time_window"
	ChangesetByTicketID         ChangesetMode = "by_ticket_id"
)

// ClusterAlgorithm names the registered clustering algorithms.
type ClusterAlgorithm string

const (
	AlgorithmComponents       ClusterAlgorithm = "components"
	AlgorithmLouvain          ClusterAlgorithm = "louvain"
	AlgorithmLabelPropagation ClusterAlgorithm = "label_propagation"
	AlgorithmHierarchical     ClusterAlgorithm = "hierarchical"
	AlgorithmDBSCAN           ClusterAlgorithm = "dbscan"
)

// Default configuration values, per the engine's external-interface contract.
const (
	defaultMinRevisions            = 5
	defaultMaxChangesetSize        = 50
	defaultMaxLogicalChangesetSize = 100
	defaultAuthorTimeWindowHours   = 24
	defaultMinCooccurrence         = 2
	defaultComponentDepth          = 2
	defaultMinComponentCooccur     = 2
	defaultTopKEdgesPerFile        = 50
	defaultRenameSimilarity        = 0.9
	defaultTicketIDPattern         = `(?i)\b([A-Z]{2,}-\d+)\b`
	defaultExtractionTimeout       = time.Hour
	defaultEdgeTimeout             = 30 * time.Minute
	defaultClusterTimeout          = 10 * time.Minute
)

// Config holds all configuration for one analysis run.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Changeset  ChangesetConfig  `mapstructure:"changeset"`
	Edge       EdgeConfig       `mapstructure:"edge"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
}

// RepositoryConfig scopes which commits and paths the run considers.
type RepositoryConfig struct {
	Path            string        `mapstructure:"path"`
	RepoID          string        `mapstructure:"repo_id"`
	IncludePatterns []string      `mapstructure:"include_patterns"`
	ExcludePatterns []string      `mapstructure:"exclude_patterns"`
	WindowDays      int           `mapstructure:"window_days"`
	Since           string        `mapstructure:"since"`
	Until           string        `mapstructure:"until"`
	CloneTimeout    time.Duration `mapstructure:"clone_timeout"`
}

// ExtractionConfig governs HistoryExtractor behavior.
type ExtractionConfig struct {
	MaxChangesetSize int           `mapstructure:"max_changeset_size"`
	RenameSimilarity float64       `mapstructure:"rename_similarity"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Workers          int           `mapstructure:"workers"`
}

// ChangesetConfig governs ChangesetShaper behavior.
type ChangesetConfig struct {
	Mode                    ChangesetMode `mapstructure:"mode"`
	MaxLogicalChangesetSize int           `mapstructure:"max_logical_changeset_size"`
	AuthorTimeWindowHours   int           `mapstructure:"author_time_window_hours"`
	TicketIDPattern         string        `mapstructure:"ticket_id_pattern"`
}

// EdgeConfig governs EdgeBuilder behavior.
type EdgeConfig struct {
	MinRevisions             int           `mapstructure:"min_revisions"`
	MinCooccurrence          int           `mapstructure:"min_cooccurrence"`
	ComponentDepth           int           `mapstructure:"component_depth"`
	MinComponentCooccurrence int           `mapstructure:"min_component_cooccurrence"`
	TopKEdgesPerFile         int           `mapstructure:"topk_edges_per_file"`
	DecayHalfLifeDays        float64       `mapstructure:"decay_half_life_days"`
	SpillThresholdBytes      int64         `mapstructure:"spill_threshold_bytes"`
	Timeout                  time.Duration `mapstructure:"timeout"`
}

// ClusterConfig governs Clusterer behavior.
type ClusterConfig struct {
	Algorithm     ClusterAlgorithm `mapstructure:"algorithm"`
	WeightColumn  string           `mapstructure:"weight_column"`
	MinWeight     float64          `mapstructure:"min_weight"`
	FolderScope   string           `mapstructure:"folder_scope"`
	Resolution    float64          `mapstructure:"resolution"`
	Seed          int64            `mapstructure:"seed"`
	MaxIterations int              `mapstructure:"max_iterations"`
	Linkage       string           `mapstructure:"linkage"`
	CutThreshold  float64          `mapstructure:"cut_threshold"`
	Eps           float64          `mapstructure:"eps"`
	MinSamples    int              `mapstructure:"min_samples"`
	Timeout       time.Duration    `mapstructure:"timeout"`
}

// StorageConfig locates the on-disk layout for a repository's artifacts.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds QueryAPI server configuration.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Enabled bool   `mapstructure:"enabled"`
}

// Load reads configuration from file, environment and defaults, then
// validates it.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("codecouple")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codecouple")
	}

	viperCfg.SetEnvPrefix("CODECOUPLE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var cfg Config

	if unmarshalErr := viperCfg.Unmarshal(&cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if validateErr := Validate(&cfg); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.clone_timeout", "10m")

	viperCfg.SetDefault("extraction.max_changeset_size", defaultMaxChangesetSize)
	viperCfg.SetDefault("extraction.rename_similarity", defaultRenameSimilarity)
	viperCfg.SetDefault("extraction.timeout", defaultExtractionTimeout.String())
	viperCfg.SetDefault("extraction.workers", 4)

	viperCfg.SetDefault("changeset.mode", string(ChangesetByCommit))
	viperCfg.SetDefault("changeset.max_logical_changeset_size", defaultMaxLogicalChangesetSize)
	viperCfg.SetDefault("changeset.author_time_window_hours", defaultAuthorTimeWindowHours)
	viperCfg.SetDefault("changeset.ticket_id_pattern", defaultTicketIDPattern)

	viperCfg.SetDefault("edge.min_revisions", defaultMinRevisions)
	viperCfg.SetDefault("edge.min_cooccurrence", defaultMinCooccurrence)
	viperCfg.SetDefault("edge.component_depth", defaultComponentDepth)
	viperCfg.SetDefault("edge.min_component_cooccurrence", defaultMinComponentCooccur)
	viperCfg.SetDefault("edge.topk_edges_per_file", defaultTopKEdgesPerFile)
	viperCfg.SetDefault("edge.spill_threshold_bytes", 256<<20)
	viperCfg.SetDefault("edge.timeout", defaultEdgeTimeout.String())

	viperCfg.SetDefault("cluster.algorithm", string(AlgorithmComponents))
	viperCfg.SetDefault("cluster.weight_column", "jaccard")
	viperCfg.SetDefault("cluster.min_weight", 0.1)
	viperCfg.SetDefault("cluster.resolution", 1.0)
	viperCfg.SetDefault("cluster.max_iterations", 100)
	viperCfg.SetDefault("cluster.linkage", "average")
	viperCfg.SetDefault("cluster.cut_threshold", 0.5)
	viperCfg.SetDefault("cluster.eps", 0.5)
	viperCfg.SetDefault("cluster.min_samples", 2)
	viperCfg.SetDefault("cluster.timeout", defaultClusterTimeout.String())

	viperCfg.SetDefault("storage.data_dir", "data/repos")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.host", "0.0.0.0")
	viperCfg.SetDefault("server.port", 8080)
}

// Validate checks invariants across the whole config; it's exported so the
// CLI and tests can validate a hand-built Config without going through Load.
func Validate(cfg *Config) error {
	if cfg.Edge.MinRevisions <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinRevisions, cfg.Edge.MinRevisions)
	}

	if cfg.Extraction.MaxChangesetSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxChangeset, cfg.Extraction.MaxChangesetSize)
	}

	if cfg.Changeset.MaxLogicalChangesetSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxLogicalSet, cfg.Changeset.MaxLogicalChangesetSize)
	}

	switch cfg.Changeset.Mode {
	case ChangesetByCommit, ChangesetByAuthorTimeWindow, ChangesetByTicketID:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChangesetMode, cfg.Changeset.Mode)
	}

	if cfg.Edge.ComponentDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidComponentDepth, cfg.Edge.ComponentDepth)
	}

	if cfg.Edge.TopKEdgesPerFile <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, cfg.Edge.TopKEdgesPerFile)
	}

	if cfg.Extraction.RenameSimilarity <= 0 || cfg.Extraction.RenameSimilarity > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidRenameSimilarity, cfg.Extraction.RenameSimilarity)
	}

	switch cfg.Cluster.Algorithm {
	case AlgorithmComponents, AlgorithmLouvain, AlgorithmLabelPropagation, AlgorithmHierarchical, AlgorithmDBSCAN:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAlgorithm, cfg.Cluster.Algorithm)
	}

	return nil
}
