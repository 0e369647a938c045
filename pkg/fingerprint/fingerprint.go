// Package fingerprint derives the deterministic identity of one artifact:
// a digest over everything that influences pipeline output, plus the
// storage key built from it. Identical inputs always produce identical
// fingerprints; any change to a parameter, the focal point consumed by a
// crop step, or the processor version changes the digest and therefore the
// artifact location, so stale artifacts are never reused.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/degerli/imagefield/pkg/pipeline"
	"github.com/degerli/imagefield/pkg/ppoi"
)

// Inputs collects everything the digest covers.
type Inputs struct {
	// SourceKey is the stable identity of the source payload.
	SourceKey string
	// SourceSignature changes whenever the source content changes, e.g. a
	// modification marker or content hash from the record store.
	SourceSignature string
	// Spec is the fully resolved pipeline.
	Spec pipeline.Spec
	// Focal is the point of interest. Only hashed when UsesPPOI is set, so
	// derivations that never look at it are not regenerated when it moves.
	Focal    ppoi.Point
	UsesPPOI bool
	// Version is the processor format version tag.
	Version string
}

// Fingerprint is the computed digest. Hex is the full SHA-256; Short is the
// fragment embedded in storage keys.
type Fingerprint struct {
	Hex   string
	Short string
}

// shortLen is the number of hex digits carried into storage keys.
const shortLen = 16

// Compute derives the fingerprint from a canonical, length-delimited
// rendering of the inputs. Length delimiting keeps distinct input tuples
// from colliding on concatenation.
func Compute(in Inputs) Fingerprint {
	h := sha256.New()
	writeField(h, in.SourceKey)
	writeField(h, in.SourceSignature)
	writeField(h, in.Spec.Canonical())
	if in.UsesPPOI {
		writeField(h, in.Focal.String())
	} else {
		writeField(h, "")
	}
	writeField(h, in.Version)

	sum := hex.EncodeToString(h.Sum(nil))
	return Fingerprint{Hex: sum, Short: sum[:shortLen]}
}

func writeField(h hash.Hash, field string) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(field)))
	h.Write(length[:])
	h.Write([]byte(field))
}

// Key builds the artifact storage key: a readable slug of the source name,
// the pipeline name, the short digest, and the output extension. Keys stay
// legible for discoverability while remaining unique per fingerprint.
func Key(sourceKey, pipelineName string, fp Fingerprint, ext string) string {
	slug := Slug(baseName(sourceKey))
	if slug == "" {
		slug = "image"
	}
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	return slug + "__" + Slug(pipelineName) + "__" + fp.Short + ext
}

// Slug reduces a name fragment to lowercase letters, digits, and single
// hyphens, safe for any path or object key.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func baseName(key string) string {
	key = strings.TrimRight(key, "/\\")
	if idx := strings.LastIndexAny(key, "/\\"); idx >= 0 {
		key = key[idx+1:]
	}
	if idx := strings.LastIndexByte(key, '.'); idx > 0 {
		key = key[:idx]
	}
	return key
}
