package domain

import "errors"

// Error kinds surfaced by the pipeline. Failures local to a single press
// (config lookup, disabled button, local enqueue) are returned synchronously
// to the device; everything after submission is asynchronous and only
// reaches the device through the status channel.
var (
	// ErrConfigNotFound means no configuration row matches the device/button.
	ErrConfigNotFound = errors.New("button config not found")

	// ErrConfigSourceUnavailable means the config source could not be
	// reached and no cached table exists to fall back on.
	ErrConfigSourceUnavailable = errors.New("config source unavailable")

	// ErrButtonDisabled means the button is configured but disabled; no
	// event is created and the transport is never invoked.
	ErrButtonDisabled = errors.New("button is disabled")

	// ErrSubmissionFailed means the local durable enqueue failed. The press
	// is lost and the device must be told immediately, since no durable
	// record of it exists yet.
	ErrSubmissionFailed = errors.New("event submission failed")
)
