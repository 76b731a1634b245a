package usecase

import "errors"

// ErrNoPriceData is returned when analysis finds no stored prices.
var ErrNoPriceData = errors.New("no price data available for analysis")

// ErrRunInProgress is returned when an analysis is triggered while another is
// still running.
var ErrRunInProgress = errors.New("analysis already in progress")
