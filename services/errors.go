package services

import (
	"errors"

	"winledger/errutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.NotFound(msg)
	}
	return err
}

// parseID rejects anything that is not a UUID before it reaches the store.
func parseID(raw, field string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errutil.Validation("invalid %s", field)
	}
	return id.String(), nil
}
