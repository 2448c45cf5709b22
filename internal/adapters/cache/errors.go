package cache

import "errors"

// ErrCacheClosed is returned by operations on a store after Close.
var ErrCacheClosed = errors.New("cache closed")
