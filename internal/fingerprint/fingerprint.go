package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/pictor-io/pictor/internal/request"
)

// Key identifies a cache-equivalent request: two requests with the same
// key are guaranteed to differ in neither semantics nor source image content.
type Key string

// Compute derives a deterministic digest from a normalized request and the
// contents of its source images. Source images contribute their bytes, not
// their paths, so a moved but byte-identical image yields the same key.
func Compute(normalized *request.Request, sourceImages [][]byte, mask []byte) Key {
	hasher := sha256.New()

	writeField(hasher, "kind", string(normalized.Kind))
	writeField(hasher, "prompt", normalized.Prompt)

	// Options are serialized in a fixed order, which makes the digest
	// independent of the order they arrived in
	options := normalized.Options
	writeField(hasher, "aspect_ratio", options.AspectRatio)
	writeField(hasher, "style", options.Style)
	writeField(hasher, "quality", string(options.Quality))
	writeField(hasher, "format", string(options.Format))
	writeField(hasher, "candidate_count", strconv.Itoa(options.CandidateCount))
	writeField(hasher, "maintain_consistency", strconv.FormatBool(options.MaintainConsistency))
	writeField(hasher, "optimize_prompt", strconv.FormatBool(options.OptimizePrompt))

	for i, keyword := range options.ExtraKeywords {
		writeField(hasher, fmt.Sprintf("keyword.%d", i), keyword)
	}

	for i, sourceImage := range sourceImages {
		contentHash := sha256.Sum256(sourceImage)
		writeField(hasher, fmt.Sprintf("source.%d", i), hex.EncodeToString(contentHash[:]))
	}

	if len(mask) != 0 {
		contentHash := sha256.Sum256(mask)
		writeField(hasher, "mask", hex.EncodeToString(contentHash[:]))
	}

	return Key(hex.EncodeToString(hasher.Sum(nil)))
}

func writeField(hasher io.Writer, name string, value string) {
	// Length-prefix the value so that adjacent fields cannot
	// produce colliding byte streams
	_, _ = fmt.Fprintf(hasher, "%s:%d:%s\x00", name, len(value), value)
}
