// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stencil

import (
	"errors"
	"net/http"

	"github.com/AleutianAI/Stentelligence/services/stencil/ingest"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Sentinel errors for the stencil service.
var (
	// ErrInvalidThresholds indicates a request-level threshold override failed validation.
	ErrInvalidThresholds = errors.New("invalid thresholds")

	// ErrUnknownFormat indicates an export format other than gerber or machine.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrUnknownJob indicates a machine job other than cut or engrave.
	ErrUnknownJob = errors.New("unknown machine job")
)

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error, fallbackCode string) (int, string) {
	switch {
	case errors.Is(err, model.ErrEmptyDataset):
		return http.StatusUnprocessableEntity, "EMPTY_DATASET"
	case errors.Is(err, ingest.ErrEmptyInput):
		return http.StatusBadRequest, "EMPTY_GERBER"
	case errors.Is(err, ErrInvalidThresholds):
		return http.StatusBadRequest, "INVALID_THRESHOLDS"
	case errors.Is(err, ErrUnknownFormat):
		return http.StatusBadRequest, "UNKNOWN_FORMAT"
	case errors.Is(err, ErrUnknownJob):
		return http.StatusBadRequest, "UNKNOWN_JOB"
	default:
		return http.StatusInternalServerError, fallbackCode
	}
}
