// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import "errors"

// Sentinel errors returned by analyzers and the registry.
var (
	// ErrFileTooLarge indicates content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrTooManyLines indicates content exceeds the configured line limit.
	ErrTooManyLines = errors.New("file exceeds maximum line count")

	// ErrInvalidContent indicates content is not valid UTF-8.
	ErrInvalidContent = errors.New("content is not valid UTF-8")

	// ErrUnsupportedLanguage indicates no registered analyzer supports the
	// file's language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNilFile indicates a nil ParsedFile was passed to Analyze.
	ErrNilFile = errors.New("parsed file is nil")
)
