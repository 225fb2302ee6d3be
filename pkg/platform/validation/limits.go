// Package validation holds request size and length limits for the public API.
package validation

import (
	"fmt"

	dErrors "formproof/pkg/domain-errors"
)

const (
	// MaxBodySize caps JSON request bodies. Init requests carry two small
	// identifiers.
	MaxBodySize = 16 * 1024

	// MaxSlugLength bounds public form slugs.
	MaxSlugLength = 200

	// MaxProofIDLength bounds proof ids in paths. Generated ids are UUIDs.
	MaxProofIDLength = 64
)

// CheckStringLength rejects values longer than max bytes as a bad request.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
