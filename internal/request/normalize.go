package request

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Raw is the permissive request shape accepted at the protocol boundary:
// scalar options may be presented either in their native type or as a string
// encoding of that type. Fields irrelevant for a given kind are ignored.
type Raw struct {
	Prompt              string   `json:"prompt"`
	ImagePath           string   `json:"image_path,omitempty"`
	MaskPath            string   `json:"mask_path,omitempty"`
	ImagePaths          []string `json:"image_paths,omitempty"`
	AspectRatio         string   `json:"aspect_ratio,omitempty"`
	Style               string   `json:"style,omitempty"`
	Quality             string   `json:"quality,omitempty"`
	OutputFormat        string   `json:"output_format,omitempty"`
	CandidateCount      any      `json:"candidate_count,omitempty"`
	MaintainConsistency any      `json:"maintain_consistency,omitempty"`
	OptimizePrompt      any      `json:"optimize_prompt,omitempty"`
	AdditionalKeywords  []string `json:"additional_keywords,omitempty"`
}

// Normalize coerces a Raw request of the given kind into a typed Request.
//
// Coercion runs before range checking, so a type error on a field is
// never masked by a range error on the same field.
func Normalize(kind Kind, raw *Raw) (*Request, error) {
	request := &Request{
		Kind: kind,
		Options: Options{
			Quality:        QualityHigh,
			Format:         FormatPNG,
			CandidateCount: 1,
			OptimizePrompt: true,
		},
	}

	// Coercion pass
	if raw.CandidateCount != nil {
		candidateCount, err := coerceInt("candidate_count", raw.CandidateCount)
		if err != nil {
			return nil, err
		}

		request.Options.CandidateCount = candidateCount
	}

	if raw.OptimizePrompt != nil {
		optimizePrompt, err := coerceBool("optimize_prompt", raw.OptimizePrompt)
		if err != nil {
			return nil, err
		}

		request.Options.OptimizePrompt = optimizePrompt
	}

	if kind == KindBlend {
		request.Options.MaintainConsistency = true

		if raw.MaintainConsistency != nil {
			maintainConsistency, err := coerceBool("maintain_consistency", raw.MaintainConsistency)
			if err != nil {
				return nil, err
			}

			request.Options.MaintainConsistency = maintainConsistency
		}
	}

	// Range and enum pass
	request.Prompt = strings.TrimSpace(raw.Prompt)

	// Bounds are defined in characters, not bytes
	promptLength := utf8.RuneCountInString(request.Prompt)
	if promptLength < MinPromptLength || promptLength > MaxPromptLength {
		return nil, failf("prompt", "length needs to be between %d and %d characters, got %d",
			MinPromptLength, MaxPromptLength, promptLength)
	}

	if request.Options.CandidateCount < MinCandidateCount ||
		request.Options.CandidateCount > MaxCandidateCount {
		return nil, failf("candidate_count", "needs to be between %d and %d, got %d",
			MinCandidateCount, MaxCandidateCount, request.Options.CandidateCount)
	}

	if raw.AspectRatio != "" {
		aspectRatio, err := normalizeAspectRatio(raw.AspectRatio)
		if err != nil {
			return nil, err
		}

		request.Options.AspectRatio = aspectRatio
	}

	if raw.Style != "" {
		style := strings.ToLower(strings.TrimSpace(raw.Style))

		if !slices.Contains(supportedStyles, style) {
			return nil, failf("style", "unsupported style preset %q", raw.Style)
		}

		request.Options.Style = style
	}

	if raw.Quality != "" {
		quality := Quality(strings.ToLower(strings.TrimSpace(raw.Quality)))

		switch quality {
		case QualityAuto, QualityLow, QualityMedium, QualityHigh:
			request.Options.Quality = quality
		default:
			return nil, failf("quality", "unsupported quality level %q", raw.Quality)
		}
	}

	if raw.OutputFormat != "" {
		format := Format(strings.ToLower(strings.TrimSpace(raw.OutputFormat)))

		switch format {
		case FormatPNG, FormatJPEG, FormatWEBP:
			request.Options.Format = format
		default:
			return nil, failf("output_format", "unsupported output format %q", raw.OutputFormat)
		}
	}

	request.Options.ExtraKeywords = raw.AdditionalKeywords

	// Arity pass
	switch kind {
	case KindGenerate:
		// No source images
	case KindEdit:
		if raw.ImagePath == "" {
			return nil, failf("image_path", "needs to be specified for edit requests")
		}

		request.SourcePaths = []string{raw.ImagePath}
		request.MaskPath = raw.MaskPath
	case KindBlend:
		if len(raw.ImagePaths) < MinBlendImages || len(raw.ImagePaths) > MaxBlendImages {
			return nil, failf("image_paths", "needs between %d and %d images, got %d",
				MinBlendImages, MaxBlendImages, len(raw.ImagePaths))
		}

		request.SourcePaths = raw.ImagePaths
	default:
		return nil, failf("kind", "unsupported operation kind %q", kind)
	}

	return request, nil
}

func coerceBool(field string, value any) (bool, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case float64:
		return typed != 0, nil
	case int:
		return typed != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return false, failf(field, "unparsable boolean token %q", typed)
		}
	default:
		return false, failf(field, "needs to be a boolean or a boolean token, got %T", value)
	}
}

func coerceInt(field string, value any) (int, error) {
	switch typed := value.(type) {
	case int:
		return typed, nil
	case float64:
		// JSON numbers always decode as float64
		if typed != math.Trunc(typed) {
			return 0, failf(field, "needs to be an integer, got %v", typed)
		}

		return int(typed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, failf(field, "unparsable integer token %q", typed)
		}

		return parsed, nil
	default:
		return 0, failf(field, "needs to be an integer or an integer token, got %T", value)
	}
}

func normalizeAspectRatio(value string) (string, error) {
	aspectRatio := strings.ToLower(strings.TrimSpace(value))

	if preset, ok := aspectRatioPresets[aspectRatio]; ok {
		aspectRatio = preset
	}

	if !slices.Contains(supportedAspectRatios, aspectRatio) {
		return "", failf("aspect_ratio", "unsupported aspect ratio %q", value)
	}

	return aspectRatio, nil
}
