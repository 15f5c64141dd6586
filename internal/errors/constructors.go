package errors

// Convenience functions for common error patterns

// Fact gathering errors

func SourceUnavailable(variable string, cause error) *PhoneHomeError {
	return Wrap(cause, CategorySource, SeverityWarning, "fact source unavailable").
		WithContext("variable", variable)
}

// Durable state errors

func StateWriteFailure(path string, cause error) *PhoneHomeError {
	return Wrap(cause, CategoryState, SeverityError, "state write failed").
		WithContext("path", path)
}

func StateReadFailure(path string, cause error) *PhoneHomeError {
	return Wrap(cause, CategoryState, SeverityWarning, "state read failed").
		WithContext("path", path)
}

// Submission errors

func TransmissionFailure(endpoint string, cause error) *PhoneHomeError {
	return Wrap(cause, CategoryTransmission, SeverityError, "transmission failed").
		WithContext("endpoint", endpoint)
}

// Orchestration errors

func PreconditionFailure(reason, stateDir string) *PhoneHomeError {
	return New(CategoryPrecondition, SeverityFatal, reason).
		WithContext("state_dir", stateDir)
}

// Configuration errors

func ConfigNotFound(path string) *PhoneHomeError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PhoneHomeError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Server-side errors

func StorageError(operation string, cause error) *PhoneHomeError {
	return Wrap(cause, CategoryStorage, SeverityError, "census storage operation failed").
		WithContext("operation", operation)
}

func ServerError(message string, cause error) *PhoneHomeError {
	return Wrap(cause, CategoryServer, SeverityError, message)
}
