package rules

import (
	"strings"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/validate"
)

const deprecatedSuffix = "(Deprecated)"

func init() {
	validate.Register(&deprecatedDisplaySuffix{})
	validate.Register(&dockerImagePinned{})
	validate.Register(&scriptArgDescriptions{})
}

// deprecatedDisplaySuffix requires deprecated integrations to advertise it in
// their display name. Auto-fix appends the suffix.
type deprecatedDisplaySuffix struct{}

func (v *deprecatedDisplaySuffix) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "IN101",
		Description: "deprecated integrations must carry the (Deprecated) display suffix",
		FixMessage:  "append (Deprecated) to the display name",
		AutoFixable: true,
		AppliesTo:   []content.ContentType{content.TypeIntegration},
	}
}

func (v *deprecatedDisplaySuffix) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.Deprecated && !strings.HasSuffix(item.DisplayName, deprecatedSuffix) {
			out = append(out, v.Meta().Fail(item, item.DisplayName, deprecatedSuffix))
		}
	}
	return out
}

func (v *deprecatedDisplaySuffix) Fix(item *content.ContentItem) error {
	display := strings.TrimSpace(item.DisplayName) + " " + deprecatedSuffix
	item.SetField("display", display)
	item.DisplayName = display
	return nil
}

// dockerImagePinned requires integrations and scripts that declare a docker
// image to pin a concrete version tag.
type dockerImagePinned struct{}

func (v *dockerImagePinned) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "DO100",
		Description: "docker images must pin a version tag",
		Rationale:   "an unpinned image makes content builds unreproducible",
		AppliesTo:   []content.ContentType{content.TypeIntegration, content.TypeScript},
	}
}

func (v *dockerImagePinned) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		image := dockerImageOf(item)
		if image == "" {
			continue
		}
		tag := ""
		if idx := strings.LastIndex(image, ":"); idx >= 0 {
			tag = image[idx+1:]
		}
		if tag == "" || tag == "latest" {
			out = append(out, v.Meta().Fail(item, image))
		}
	}
	return out
}

func dockerImageOf(item *content.ContentItem) string {
	switch {
	case item.Integration != nil:
		return item.Integration.DockerImage
	case item.Script != nil:
		return item.Script.DockerImage
	}
	return ""
}

// scriptArgDescriptions warns about script arguments without a description.
type scriptArgDescriptions struct{}

func (v *scriptArgDescriptions) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "SC100",
		Description: "script arguments should carry a description",
		AppliesTo:   []content.ContentType{content.TypeScript},
	}
}

func (v *scriptArgDescriptions) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.Script == nil {
			continue
		}
		for _, arg := range item.Script.Arguments {
			if strings.TrimSpace(arg.Description) == "" {
				out = append(out, v.Meta().Fail(item, arg.Name))
			}
		}
	}
	return out
}
