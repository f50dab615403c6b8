// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is one record of a corpus as seen by the cleaning core. Text is
// never modified here; Raw keeps the original encoded row so that every
// passthrough field survives removal untouched.
type Document struct {
	// ID is the stable identifier, unique within its dataset.
	ID string `json:"id" yaml:"id"`

	// Position is the zero-based ordinal of the document in its dataset.
	Position int `json:"position" yaml:"position"`

	// Text is the comparison text.
	Text string `json:"text" yaml:"text"`

	// Source is the dataset or group label.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Raw is the original JSON row.
	Raw []byte `json:"-" yaml:"-"`
}

// Signature is a MinHash sketch owned by one document.
type Signature struct {
	// OwnerID is the ID of the document the sketch was built from.
	OwnerID string `json:"owner_id" yaml:"owner_id"`

	// Position is the owner's ordinal in its dataset.
	Position int `json:"position" yaml:"position"`

	// Seed is the permutation seed the sketch was built with.
	Seed int64 `json:"seed" yaml:"seed"`

	// HashValues holds num_perm minimum hash values.
	HashValues []uint64 `json:"hashvalues" yaml:"hashvalues"`
}

// NumPerm returns the sketch width.
func (s Signature) NumPerm() int {
	return len(s.HashValues)
}

// DuplicateRecord is a verified near-duplicate (deduplication) or
// contamination (decontamination) link. At most one exists per SourceID.
type DuplicateRecord struct {
	SourceID         string  `json:"source_id" yaml:"source_id"`
	SourceDataset    string  `json:"source_dataset" yaml:"source_dataset"`
	SourceText       string  `json:"source_text" yaml:"source_text"`
	ReferenceID      string  `json:"reference_id" yaml:"reference_id"`
	ReferenceText    string  `json:"reference_text" yaml:"reference_text"`
	ReferenceDataset string  `json:"reference_dataset" yaml:"reference_dataset"`
	Score            float64 `json:"score" yaml:"score"`
}

// RemovalSet holds the IDs of documents to drop.
type RemovalSet map[string]struct{}

// NewRemovalSet builds a set from the source IDs of records.
func NewRemovalSet(records []DuplicateRecord) RemovalSet {
	set := make(RemovalSet, len(records))
	for _, r := range records {
		set[r.SourceID] = struct{}{}
	}
	return set
}

// Contains reports whether id is marked for removal.
func (s RemovalSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id for removal.
func (s RemovalSet) Add(id string) {
	s[id] = struct{}{}
}

// Union adds every id of other to s.
func (s RemovalSet) Union(other RemovalSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Workflow names one of the two cleaning passes.
type Workflow string

const (
	WorkflowDedup         Workflow = "deduplication"
	WorkflowDecontaminate Workflow = "decontamination"
)

// RunSummary describes one pipeline invocation for the audit trail.
type RunSummary struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Workflow   Workflow       `json:"workflow" yaml:"workflow"`
	NumPerm    int            `json:"num_perm" yaml:"num_perm"`
	Seed       int64          `json:"seed" yaml:"seed"`
	Threshold  float64        `json:"threshold" yaml:"threshold"`
	Input      int            `json:"input" yaml:"input"`
	Removed    int            `json:"removed" yaml:"removed"`
	Kept       int            `json:"kept" yaml:"kept"`
	PerGroup   map[string]int `json:"per_group,omitempty" yaml:"per_group,omitempty"`
	OutputPath string         `json:"output_path" yaml:"output_path"`
	ReportPath string         `json:"report_path" yaml:"report_path"`
}
