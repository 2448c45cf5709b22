package model

import "time"

// Constituent is a current index member as reported by the data service.
// DateFirstAdded is kept raw because the source sometimes omits it.
type Constituent struct {
	Symbol         string
	DateFirstAdded string
}

// ConstituentChange is one entry of the historical membership change log.
type ConstituentChange struct {
	Date    string
	Added   string
	Removed string
}

// TranscriptRef identifies an available earnings-call transcript.
type TranscriptRef struct {
	Quarter   int
	Year      int
	Timestamp string
}

// Surprise is one EPS surprise record. Actual and Estimated are nil when the
// source value is missing or not numeric.
type Surprise struct {
	Date      time.Time
	Actual    *float64
	Estimated *float64
}

// PricePoint is a daily close.
type PricePoint struct {
	Date  time.Time
	Close float64
}
