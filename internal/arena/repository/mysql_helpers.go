package repository

import (
	"encoding/json"

	"botarena/internal/common/db"
	appErr "botarena/pkg/errors"
)

// storageErr maps a driver error to the connectivity kind so worker
// loops treat storage failures as fatal, unlike per-job errors.
func storageErr(err error, op string) error {
	return appErr.Wrapf(err, appErr.StorageUnavailable, "%s failed: %v", op, err)
}

// scanResult maps sql.ErrNoRows to a plain not-found error and
// everything else to a storage connectivity error.
func scanResult(err error, resource, op string) error {
	if db.IsNoRows(err) {
		return appErr.NotFoundError(resource)
	}
	return storageErr(err, op)
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", appErr.InternalError(err)
	}
	return string(data), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "decode id list failed: %v", err)
	}
	return values, nil
}
