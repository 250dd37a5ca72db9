package registry

import (
	"fmt"
	"strings"
)

// Stage is one of the eight fixed registration phases.
type Stage string

const (
	StageResourceInventory    Stage = "resource_inventory"
	StageAssetInventory       Stage = "asset_inventory"
	StageUsageScenario        Stage = "usage_scenario"
	StageComplianceAssessment Stage = "compliance_assessment"
	StageQualityReport        Stage = "quality_report"
	StageAccountingGuidance   Stage = "accounting_guidance"
	StageValueAssessment      Stage = "value_assessment"
	StageOperation            Stage = "operation"
)

var stageOrder = [...]Stage{
	StageResourceInventory,
	StageAssetInventory,
	StageUsageScenario,
	StageComplianceAssessment,
	StageQualityReport,
	StageAccountingGuidance,
	StageValueAssessment,
	StageOperation,
}

var stageIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(stageOrder))
	for i, s := range stageOrder {
		m[s] = i
	}
	return m
}()

// InitialStage is the stage every new asset starts in.
const InitialStage = StageResourceInventory

// Stages returns the sequence in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder[:])
	return out
}

// Index returns the zero-based position of s, or -1 if s is unknown.
func (s Stage) Index() int {
	if i, ok := stageIndex[s]; ok {
		return i
	}
	return -1
}

func (s Stage) Valid() bool {
	_, ok := stageIndex[s]
	return ok
}

// Next returns the successor stage. ok is false at the terminal stage.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// Prev returns the predecessor stage. ok is false at the first stage.
func (s Stage) Prev() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// IsTerminal reports whether s is the last stage.
func (s Stage) IsTerminal() bool {
	return s.Index() == len(stageOrder)-1
}

// ParseStage validates a stage name.
func ParseStage(v string) (Stage, error) {
	s := Stage(strings.TrimSpace(strings.ToLower(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, v)
	}
	return s, nil
}

// Status is the approval state of a stage record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible for the record.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}
