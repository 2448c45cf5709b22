package service

import "errors"

var (
	// ErrRunInProgress is returned by Run while another run is executing.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrEmptyUniverse is returned when no tickers remain after exclusions.
	ErrEmptyUniverse = errors.New("no tickers to process")
)
