package request

import (
	"fmt"
)

type Kind string

const (
	KindGenerate Kind = "generate"
	KindEdit     Kind = "edit"
	KindBlend    Kind = "blend"
)

// Category returns the artifact category that results
// of this request kind are persisted under.
func (kind Kind) Category() string {
	switch kind {
	case KindEdit:
		return "edited"
	case KindBlend:
		return "blended"
	default:
		return "generated"
	}
}

type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
)

const (
	MinPromptLength = 3
	MaxPromptLength = 2000

	MinCandidateCount = 1
	MaxCandidateCount = 4

	MinBlendImages = 2
	MaxBlendImages = 4
)

var supportedAspectRatios = []string{"1:1", "16:9", "9:16", "21:9", "2.39:1", "4:3"}

// aspectRatioPresets are accepted as aliases for the ratios above.
var aspectRatioPresets = map[string]string{
	"square":     "1:1",
	"landscape":  "16:9",
	"portrait":   "9:16",
	"widescreen": "21:9",
	"cinema":     "2.39:1",
	"photo":      "4:3",
	"instagram":  "1:1",
	"story":      "9:16",
}

var supportedStyles = []string{
	"photorealistic", "digital_art", "oil_painting", "watercolor",
	"cartoon", "anime", "sketch", "vintage",
}

// Request is a fully-typed, bound-checked image request
// as produced by Normalize().
type Request struct {
	Kind         Kind
	Prompt       string
	SourcePaths  []string
	MaskPath     string
	Options      Options
}

type Options struct {
	AspectRatio         string
	Style               string
	Quality             Quality
	Format              Format
	CandidateCount      int
	MaintainConsistency bool
	OptimizePrompt      bool
	ExtraKeywords       []string
}

// FieldError names the offending field and the reason
// a request failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (fieldError *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", fieldError.Field, fieldError.Reason)
}

func failf(field string, format string, args ...interface{}) *FieldError {
	return &FieldError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
