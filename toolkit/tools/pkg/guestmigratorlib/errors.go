// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

type MigrationError struct {
	name    string
	message string
}

func NewMigrationError(name string, message string) *MigrationError {
	return &MigrationError{
		name:    name,
		message: message,
	}
}

func (e *MigrationError) Name() string {
	return e.name
}

func (e *MigrationError) Error() string {
	return e.message
}

// GetAllMigrationErrors returns every named error in the error tree, outermost first.
func GetAllMigrationErrors(err error) []*MigrationError {
	namedErrors := []*MigrationError(nil)
	collectMigrationErrors(err, &namedErrors)
	return namedErrors
}

func collectMigrationErrors(err error, namedErrors *[]*MigrationError) {
	if err == nil {
		return
	}

	namedError, isNamed := err.(*MigrationError)
	if isNamed {
		*namedErrors = append(*namedErrors, namedError)
	}

	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		for _, child := range wrapped.Unwrap() {
			collectMigrationErrors(child, namedErrors)
		}

	case interface{ Unwrap() error }:
		collectMigrationErrors(wrapped.Unwrap(), namedErrors)
	}
}
