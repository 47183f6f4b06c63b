package controller

import "errors"

var (
	// ErrNoDialer is returned when a Controller is constructed without a
	// Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish a connection to the controller.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer produced no Transport.
	ErrNotInitialized = errors.New("controller not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Controller
	// that has already been closed, or when Loop is started after Close.
	ErrAlreadyClosed = errors.New("controller already closed")

	// ErrLoopRunning is returned when Loop is called while another Loop
	// is still reading the transport.
	ErrLoopRunning = errors.New("loop already running")

	// ErrLineTooLong is returned when a line from the controller exceeds
	// the configured maximum length.
	//
	// This typically indicates a baud rate mismatch, unexpected binary
	// data, or a framing error.
	ErrLineTooLong = errors.New("line too long")
)
