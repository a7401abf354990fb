package rules

import (
	"sort"
	"strings"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/validate"
)

func init() {
	validate.Register(&unhandledConditionBranch{})
	validate.Register(&incidentFieldGroup{})
}

// defaultBranchLabel is the implicit else branch of a condition task.
const defaultBranchLabel = "#default#"

// unhandledConditionBranch requires every condition task to wire each of its
// branches, including the implicit default, to a next task.
type unhandledConditionBranch struct{}

func (v *unhandledConditionBranch) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "PB100",
		Description: "condition tasks must handle every branch",
		Rationale:   "an unwired branch silently ends the playbook mid-investigation",
		AppliesTo:   []content.ContentType{content.TypePlaybook},
	}
}

func (v *unhandledConditionBranch) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.Playbook == nil {
			continue
		}
		for _, task := range item.Playbook.Tasks {
			if task.Type != "condition" {
				continue
			}
			handled := task.BranchTargets()
			var missing []string
			for _, label := range append(task.ConditionLabels, defaultBranchLabel) {
				if !handled[label] {
					missing = append(missing, label)
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				out = append(out, v.Meta().Fail(item, task.ID, strings.Join(missing, ", ")))
			}
		}
	}
	return out
}

// incidentFieldGroup requires incident fields to declare the incident group.
type incidentFieldGroup struct{}

// incidentGroup is the platform's group discriminator for incident fields.
const incidentGroup = 0

func (v *incidentFieldGroup) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "IF104",
		Description: "incident fields must use the incident group value",
		AppliesTo:   []content.ContentType{content.TypeIncidentField},
	}
}

func (v *incidentFieldGroup) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.Field == nil {
			continue
		}
		if item.Field.Group != incidentGroup {
			out = append(out, v.Meta().Fail(item, item.Field.Group, incidentGroup))
		}
	}
	return out
}
