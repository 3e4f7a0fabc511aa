package billing

import "errors"

var ErrRecordImmutable = errors.New("billing records are append-only")
