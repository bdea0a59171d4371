// Package fingerprint computes perceptual fingerprints of captured images
// and the Hamming distance between them. Lower distance means more similar;
// zero means perceptually identical.
package fingerprint

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder

	"github.com/corona10/goimagehash"

	apperrors "github.com/pagelapse/pagelapse/internal/errors"
)

// DefaultSize is the default hash side length. Larger sizes increase
// sensitivity to small visual changes.
const DefaultSize = 12

// ErrEmptyInput is returned when the input byte slice is empty. Callers must
// treat it as "no frame produced", not as a fingerprinting failure.
var ErrEmptyInput = errors.New("fingerprint: empty input")

// Fingerprint is a fixed-size perceptual summary of an image.
type Fingerprint struct {
	hash *goimagehash.ExtImageHash
}

// Compute decodes the image bytes and returns its difference hash at the
// given side length (size x size bits). Deterministic for identical input.
func Compute(data []byte, size int) (*Fingerprint, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if size <= 0 {
		size = DefaultSize
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFingerprint, "decode image")
	}

	hash, err := goimagehash.ExtDifferenceHash(img, size, size)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFingerprint, "compute hash")
	}
	return &Fingerprint{hash: hash}, nil
}

// Distance returns the Hamming distance to another fingerprint. Symmetric,
// non-negative, zero iff the fingerprints are identical. Fails only when the
// fingerprints were computed at different granularities.
func (f *Fingerprint) Distance(other *Fingerprint) (int, error) {
	if f == nil || other == nil {
		return 0, apperrors.New(apperrors.CodeFingerprint, "distance on nil fingerprint")
	}
	dist, err := f.hash.Distance(other.hash)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeFingerprint, "hash distance")
	}
	return dist, nil
}

// String returns the hex form of the fingerprint for log output.
func (f *Fingerprint) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.hash.ToString()
}
