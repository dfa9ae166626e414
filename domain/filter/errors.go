package filter

import (
	"fmt"

	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

func invalidStructure(reason string) error {
	return svcerrors.InvalidFilterStructure(reason)
}

func fieldProjectionConflict(field string) error {
	return svcerrors.FilterValidationFailed(fmt.Sprintf("projection: field %q cannot be both included and excluded", field))
}

func negativeLimit() error {
	return svcerrors.FilterValidationFailed("limit must not be negative")
}

func negativeSkip() error {
	return svcerrors.FilterValidationFailed("skip must not be negative")
}
