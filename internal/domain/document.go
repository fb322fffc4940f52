package domain

import "time"

// Document is the unit of retrievable content produced by a source fetcher.
// Documents are immutable once produced; a newer fetch cycle supersedes them
// rather than mutating in place.
type Document struct {
	// ID is globally unique and source-prefixed.
	// Format: "confluence_12345" or "gitlab_org/repo/path/file.py#func"
	ID string `json:"id"`

	Content      string         `json:"content"`
	Title        string         `json:"title"`
	Source       string         `json:"source"`
	DocumentType string         `json:"document_type"`
	BusinessArea string         `json:"business_area"`
	LastModified time.Time      `json:"last_modified"`
	URL          string         `json:"url,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RetrievedDocument is the normalized representation of a document returned
// by any retriever, regardless of the backing source.
type RetrievedDocument struct {
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Source       string         `json:"source"`
	DocumentType string         `json:"document_type"`
	Score        float64        `json:"score"`
	URL          string         `json:"url,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RetrievalResult is the aggregate outcome of one retriever invocation.
// A retriever never returns a Go error for a partial or empty result; failure
// is encoded in the Error field so that one source cannot abort the others.
type RetrievalResult struct {
	Documents     []RetrievedDocument `json:"documents"`
	RetrieverName string              `json:"retriever_name"`
	Source        string              `json:"source"`
	Message       string              `json:"message"`
	Error         string              `json:"error,omitempty"`
}

// Result status messages shared across retrievers.
const (
	MessageSuccess           = "success"
	MessageNoResults         = "no_results"
	MessageError             = "error"
	MessageNoRetriever       = "no_retriever"
	MessageRetrieverNotFound = "retriever_not_found"
)

// RankedResult is one fused entry returned by hybrid search. Payload carries
// the stored document fields of whichever candidate list saw the id first.
type RankedResult struct {
	ID       string         `json:"id"`
	RRFScore float64        `json:"rrf_score"`
	Payload  map[string]any `json:"payload"`
}

// Bleve field name constants for the chunk index mapping and queries.
const (
	ChunkFieldID           = "id"
	ChunkFieldTitle        = "title"
	ChunkFieldContent      = "content"
	ChunkFieldSource       = "source"
	ChunkFieldDocumentType = "document_type"
	ChunkFieldURL          = "url"
)
