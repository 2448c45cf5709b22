package fmp

import "errors"

// ErrDecode wraps responses that are not the JSON shape an endpoint returns.
var ErrDecode = errors.New("decode data-service response")
