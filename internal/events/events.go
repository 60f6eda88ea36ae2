// Package events records pipeline milestones to an append-only JSONL log.
// Each line is a self-contained record carrying a timestamp and event type;
// downstream reporting tails the file without coordinating with the daemon.
package events

import "time"

// Type identifies a pipeline milestone. The set is closed: consumers match
// on these strings and new types require coordinated changes downstream.
type Type string

const (
	TypeNewFiles                  Type = "NEW_FILES"
	TypeRetroactiveTag            Type = "RETROACTIVE_TAG"
	TypeFolderIngestSuccess       Type = "FOLDER_INGEST_SUCCESS"
	TypeFolderIngestFailure       Type = "FOLDER_INGEST_FAILURE"
	TypeNVIngestSuccess           Type = "NV_INGEST_SUCCESS"
	TypeNVIngestFailure           Type = "NV_INGEST_FAILURE"
	TypeEmbeddingSuccess          Type = "EMBEDDING_SUCCESS"
	TypeEmbeddingFailure          Type = "EMBEDDING_FAILURE"
	TypeTierPromotionByTag        Type = "TIER0_PROMOTION_BY_TAG"
	TypeTierDemotionByTag         Type = "TIER0_DEMOTION_BY_TAG"
	TypeMilvusEmbeddingsConfirmed Type = "MILVUS_EMBEDDINGS_CONFIRMED"
)

// Record is one logged milestone. Timestamp and EventType form the envelope;
// remaining fields are populated per type and omitted otherwise.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	EventType Type      `json:"event_type"`

	Path       string   `json:"path,omitempty"`
	Paths      []string `json:"paths,omitempty"`
	Tag        string   `json:"tag,omitempty"`
	Value      string   `json:"value,omitempty"`
	Collection string   `json:"collection,omitempty"`
	JobName    string   `json:"job_name,omitempty"`
	FileCount  int      `json:"file_count,omitempty"`
	Objective  string   `json:"objective,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// NewFiles records a batch of freshly tagged paths.
func NewFiles(paths []string) Record {
	return Record{EventType: TypeNewFiles, Paths: paths}
}

// RetroactiveTag records a path picked up by the retroactive sweep.
func RetroactiveTag(path, tag, value string) Record {
	return Record{EventType: TypeRetroactiveTag, Path: path, Tag: tag, Value: value}
}

// FolderIngestSuccess records a folder job submission that completed.
func FolderIngestSuccess(path, collection, jobName string, fileCount int) Record {
	return Record{
		EventType:  TypeFolderIngestSuccess,
		Path:       path,
		Collection: collection,
		JobName:    jobName,
		FileCount:  fileCount,
	}
}

// FolderIngestFailure records a folder job that could not be submitted or
// did not complete.
func FolderIngestFailure(path, detail string) Record {
	return Record{EventType: TypeFolderIngestFailure, Path: path, Detail: detail}
}

// IngestSuccess records a single-file ingestion that completed.
func IngestSuccess(path, collection, jobName string) Record {
	return Record{
		EventType:  TypeNVIngestSuccess,
		Path:       path,
		Collection: collection,
		JobName:    jobName,
	}
}

// IngestFailure records a single-file ingestion that failed.
func IngestFailure(path, detail string) Record {
	return Record{EventType: TypeNVIngestFailure, Path: path, Detail: detail}
}

// EmbeddingSuccess records the embedding tag landing on a path.
func EmbeddingSuccess(path, collection string) Record {
	return Record{EventType: TypeEmbeddingSuccess, Path: path, Collection: collection}
}

// EmbeddingFailure records an embedding pipeline failure for a path.
func EmbeddingFailure(path, detail string) Record {
	return Record{EventType: TypeEmbeddingFailure, Path: path, Detail: detail}
}

// Promotion records a tag-driven fast-tier promotion sweep.
func Promotion(tag, value, objective string, paths []string) Record {
	return Record{
		EventType: TypeTierPromotionByTag,
		Tag:       tag,
		Value:     value,
		Objective: objective,
		Paths:     paths,
	}
}

// Demotion records a tag-driven fast-tier demotion sweep.
func Demotion(tag, value, objective string, paths []string) Record {
	return Record{
		EventType: TypeTierDemotionByTag,
		Tag:       tag,
		Value:     value,
		Objective: objective,
		Paths:     paths,
	}
}

// EmbeddingsConfirmed records verification that a collection holds entries
// for a path.
func EmbeddingsConfirmed(path, collection string) Record {
	return Record{EventType: TypeMilvusEmbeddingsConfirmed, Path: path, Collection: collection}
}
