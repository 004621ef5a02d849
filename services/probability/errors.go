// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probability

import "errors"

// Sentinel errors for the probability package.
//
// Callers should match with errors.Is; every error returned by this package
// wraps exactly one of these with call-site detail.
var (
	// ErrValidation indicates a malformed distribution, range, condition, or
	// constraint definition detected at construction time.
	ErrValidation = errors.New("invalid configuration value")

	// ErrNotRegistered indicates a selection referenced an unknown distribution.
	ErrNotRegistered = errors.New("distribution not registered")

	// ErrInvalidConfig indicates a distribution config lacks the data its kind
	// requires at sampling time, or no candidate outcome has positive weight.
	ErrInvalidConfig = errors.New("invalid distribution configuration")

	// ErrInvalidArgument indicates a malformed call argument, such as a bulk
	// contexts slice whose length does not match the requested count.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedKind indicates no strategy is registered for a
	// distribution's kind.
	ErrUnsupportedKind = errors.New("no strategy for distribution kind")
)
