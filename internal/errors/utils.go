package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a BrandkitError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *BrandkitError {
	if err == nil {
		return nil
	}

	var be *BrandkitError
	if errors.As(err, &be) {
		return &BrandkitError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       be,
			Context:     be.Context,
			Component:   be.Component,
			Asset:       be.Asset,
			FilePath:    be.FilePath,
			Recoverable: be.Recoverable,
		}
	}

	return &BrandkitError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeProcessing,
	}
}

// WrapProcessing wraps an error as a per-asset processing error
func WrapProcessing(err error, code, message, asset string) *BrandkitError {
	be := Wrap(err, ErrorTypeProcessing, code, message)
	if be != nil {
		be.Asset = asset
		be.Recoverable = true
	}
	return be
}

// WrapValidation wraps an error as a validation error
func WrapValidation(err error, code, message string) *BrandkitError {
	return Wrap(err, ErrorTypeValidation, code, message)
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *BrandkitError {
	be := Wrap(err, ErrorTypeIO, code, message)
	if be != nil {
		be.Recoverable = false
	}
	return be
}

// WrapInjection wraps an error as an injection error for the given target file
func WrapInjection(err error, message, targetFile string) *BrandkitError {
	be := Wrap(err, ErrorTypeInjection, ErrCodeInjectionFailed, message)
	if be != nil {
		be.FilePath = targetFile
		be.Recoverable = false
	}
	return be
}

// WrapStorage wraps an error as an upload store error
func WrapStorage(err error, message string) *BrandkitError {
	be := Wrap(err, ErrorTypeStorage, ErrCodeStorageFailed, message)
	if be != nil {
		be.Recoverable = false
	}
	return be
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *BrandkitError {
	be := Wrap(err, ErrorTypeConfig, code, message)
	if be != nil {
		be.Recoverable = false
	}
	return be
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var be *BrandkitError
	if errors.As(err, &be) {
		return be.Error()
	}

	return err.Error()
}

// FormatErrorWithSuggestions formats an error with suggestions for ValidationError types
func FormatErrorWithSuggestions(err error) string {
	if err == nil {
		return ""
	}

	var vec *ValidationErrorCollection
	if errors.As(err, &vec) {
		result := ""
		for i, ve := range vec.Errors {
			if i > 0 {
				result += "\n"
			}
			result += formatValidation(ve)
		}
		return result
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		return formatValidation(ve)
	}

	return FormatError(err)
}

func formatValidation(ve ValidationError) string {
	result := ve.Error()
	for _, suggestion := range ve.Suggestions() {
		result += fmt.Sprintf("\n  • %s", suggestion)
	}
	return result
}

// GetErrorContext extracts context information from a BrandkitError
func GetErrorContext(err error) map[string]interface{} {
	var be *BrandkitError
	if errors.As(err, &be) {
		context := make(map[string]interface{})
		for k, v := range be.Context {
			context[k] = v
		}
		if be.Component != "" {
			context["component"] = be.Component
		}
		if be.Asset != "" {
			context["asset"] = be.Asset
		}
		if be.FilePath != "" {
			context["file"] = be.FilePath
		}
		context["type"] = string(be.Type)
		context["code"] = be.Code
		context["recoverable"] = be.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
