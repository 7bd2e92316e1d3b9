package audit

import "anon-sync/feature/customers/models"

// Result is the audit outcome for a single record ID.
type Result struct {
	// ID is the record identifier shared by source and mirror.
	ID string `json:"id"`

	// SourcePresent indicates whether the record exists in the source.
	SourcePresent bool `json:"source_present"`

	// MirrorPresent indicates whether the record exists in the mirror.
	MirrorPresent bool `json:"mirror_present"`

	// Mismatch lists mirror columns that differ from the anonymized source,
	// e.g. "first_name". Empty unless the record is present on both sides.
	Mismatch []string `json:"mismatch"`
}

// ActionType represents the type of repair action.
type ActionType string

const (
	// ActionUpsertMirror writes the anonymized source record into the mirror.
	ActionUpsertMirror ActionType = "upsert_mirror"
	// ActionDeleteMirror removes a mirror record without a source record.
	ActionDeleteMirror ActionType = "delete_mirror"
)

// Action represents a planned repair.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the record ID.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Record is the anonymized record to write. Only set for ActionUpsertMirror.
	Record models.Customer `json:"-"`
}

// Plan contains audit results and planned repairs.
type Plan struct {
	Results []Result `json:"results"`
	Actions []Action `json:"actions"`
	Summary Summary  `json:"summary"`
}

// Summary provides aggregate counts of a Plan.
type Summary struct {
	// TotalItems is the number of distinct IDs across both tables.
	TotalItems int `json:"total_items"`

	// MissingMirror counts source records absent from the mirror.
	MissingMirror int `json:"missing_mirror"`

	// Orphans counts mirror records absent from the source.
	Orphans int `json:"orphans"`

	// Mismatches counts mirror records that differ from the anonymized source.
	Mismatches int `json:"mismatches"`

	// RepairActions counts planned upserts.
	RepairActions int `json:"repair_actions"`

	// PurgeActions counts planned deletions.
	PurgeActions int `json:"purge_actions"`
}

// Options controls which repairs are planned and whether they run.
type Options struct {
	// DryRun prevents execution of any mutations if true.
	DryRun bool

	// DoRepair plans upserts for missing and mismatched mirror records.
	DoRepair bool

	// DoPurge plans deletion of orphaned mirror records.
	DoPurge bool

	// Confirmed indicates the user has confirmed the mutations.
	// If false, nothing is executed regardless of DryRun.
	Confirmed bool

	// ChunkSize is the number of rows read per query while indexing.
	ChunkSize int
}
