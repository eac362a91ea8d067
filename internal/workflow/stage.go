package workflow

// Stage is a step of an invoice cycle.
type Stage int

const (
	StageDiscover Stage = iota
	StageValidate
	StageAllocateInvoice
	StagePreparePaths
	StageRenderScreenshots
	StageExtractHours
	StageComputeDates
	StageComposeUpdate
	StageApplyUpdate
	StageExportArtifact
	StageDraft
	StageDone
)

var stageNames = [...]string{
	StageDiscover:          "discover",
	StageValidate:          "validate",
	StageAllocateInvoice:   "allocate_invoice",
	StagePreparePaths:      "prepare_paths",
	StageRenderScreenshots: "render_screenshots",
	StageExtractHours:      "extract_hours",
	StageComputeDates:      "compute_dates",
	StageComposeUpdate:     "compose_update",
	StageApplyUpdate:       "apply_update",
	StageExportArtifact:    "export_artifact",
	StageDraft:             "draft",
	StageDone:              "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalText renders the stage name in JSON output.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
