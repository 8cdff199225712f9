// Package promptopt rewrites user prompts into a form the generation
// model responds to best: a task prefix, style and quality keywords,
// an aspect ratio hint and caller-supplied keywords, deduplicated.
package promptopt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pictor-io/pictor/internal/request"
)

var kindPrefixes = map[request.Kind]string{
	request.KindGenerate: "Generate an image of",
	request.KindEdit:     "Edit this image to",
	request.KindBlend:    "Blend these images to create",
}

var stylePresets = map[string]string{
	"photorealistic": "photorealistic, professional photography, high quality",
	"digital_art":    "digital art, concept art, detailed illustration",
	"oil_painting":   "oil painting, classical art, brush strokes",
	"watercolor":     "watercolor painting, soft colors, artistic",
	"cartoon":        "cartoon style, animated, colorful, stylized",
	"anime":          "anime style, manga, japanese animation",
	"sketch":         "pencil sketch, black and white, hand-drawn",
	"vintage":        "vintage style, retro, aged, classic",
}

var qualityKeywords = []string{
	"high quality", "detailed", "sharp", "crisp", "professional",
	"photorealistic", "ultra-detailed", "masterpiece", "best quality",
}

var prohibitedKeywords = []string{
	"nsfw", "explicit", "adult", "violence", "gore", "hate",
	"discrimination", "illegal", "harmful", "dangerous",
}

// Optimize returns the prompt to send to the remote API. When the
// request opts out of optimization the prompt passes through verbatim,
// except for the safety check which always applies.
func Optimize(req *request.Request) (string, error) {
	if err := checkSafety(req.Prompt); err != nil {
		return "", err
	}

	if !req.Options.OptimizePrompt {
		return req.Prompt, nil
	}

	optimized := req.Prompt

	if prefix, ok := kindPrefixes[req.Kind]; ok && !hasKnownPrefix(optimized) {
		optimized = prefix + " " + optimized
	}

	if preset, ok := stylePresets[req.Options.Style]; ok {
		optimized = appendMissing(optimized, strings.Split(preset, ", "))
	}

	if !containsAny(optimized, qualityKeywords) {
		optimized = appendMissing(optimized, qualityAdditions(req.Options.Quality))
	}

	if req.Options.AspectRatio != "" && !strings.Contains(strings.ToLower(optimized), "ratio") {
		optimized = fmt.Sprintf("%s, %s aspect ratio", optimized, req.Options.AspectRatio)
	}

	optimized = appendMissing(optimized, req.Options.ExtraKeywords)

	if req.Kind == request.KindBlend && req.Options.MaintainConsistency {
		optimized = appendMissing(optimized, []string{"consistent lighting and style across all elements"})
	}

	optimized = tidy(optimized)

	// Keyword additions can push a borderline prompt over the limit.
	// The limit is in characters, so truncate at a rune index to avoid
	// splitting a multi-byte rune.
	if utf8.RuneCountInString(optimized) > request.MaxPromptLength {
		truncated := string([]rune(optimized)[:request.MaxPromptLength])

		if idx := strings.LastIndex(truncated, ","); idx > 0 {
			truncated = truncated[:idx]
		}

		optimized = truncated
	}

	return optimized, nil
}

func checkSafety(prompt string) error {
	promptLower := strings.ToLower(prompt)

	for _, keyword := range prohibitedKeywords {
		if strings.Contains(promptLower, keyword) {
			return fmt.Errorf("prompt contains prohibited content: %q", keyword)
		}
	}

	return nil
}

func hasKnownPrefix(prompt string) bool {
	promptLower := strings.ToLower(prompt)

	for _, prefix := range kindPrefixes {
		if strings.HasPrefix(promptLower, strings.ToLower(prefix)) {
			return true
		}
	}

	return false
}

func qualityAdditions(quality request.Quality) []string {
	switch quality {
	case request.QualityLow:
		return nil
	case request.QualityMedium:
		return []string{"good quality", "clear"}
	case request.QualityHigh:
		return []string{"high quality", "detailed", "professional"}
	default:
		return []string{"high quality", "detailed"}
	}
}

func containsAny(prompt string, keywords []string) bool {
	promptLower := strings.ToLower(prompt)

	for _, keyword := range keywords {
		if strings.Contains(promptLower, keyword) {
			return true
		}
	}

	return false
}

// appendMissing adds each keyword not already present in the prompt.
func appendMissing(prompt string, keywords []string) string {
	promptLower := strings.ToLower(prompt)

	var missing []string

	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)

		if keyword == "" {
			continue
		}

		if !strings.Contains(promptLower, strings.ToLower(keyword)) {
			missing = append(missing, keyword)
		}
	}

	if len(missing) == 0 {
		return prompt
	}

	return prompt + ", " + strings.Join(missing, ", ")
}

// tidy collapses whitespace and drops duplicated comma-separated terms
// while preserving their first-seen order.
func tidy(prompt string) string {
	prompt = strings.Join(strings.Fields(prompt), " ")

	terms := strings.Split(prompt, ",")
	seen := make(map[string]struct{}, len(terms))

	var unique []string

	for _, term := range terms {
		term = strings.TrimSpace(term)

		if term == "" {
			continue
		}

		termLower := strings.ToLower(term)

		if _, ok := seen[termLower]; ok {
			continue
		}

		seen[termLower] = struct{}{}
		unique = append(unique, term)
	}

	return strings.Join(unique, ", ")
}
