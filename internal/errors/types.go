package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProcessing ErrorType = "processing"
	ErrorTypeInjection  ErrorType = "injection"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeConfig     ErrorType = "config"
)

// BrandkitError is a structured error type with context.
type BrandkitError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Asset       string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *BrandkitError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.Asset != "" {
		parts = append(parts, "asset:"+e.Asset)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BrandkitError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *BrandkitError) Is(target error) bool {
	var t *BrandkitError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BrandkitError) WithContext(key string, value interface{}) *BrandkitError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error refers to.
func (e *BrandkitError) WithFile(filePath string) *BrandkitError {
	e.FilePath = filePath

	return e
}

// WithAsset records the asset (source field or custom image name) being handled.
func (e *BrandkitError) WithAsset(asset string) *BrandkitError {
	e.Asset = asset

	return e
}

// WithComponent adds component context.
func (e *BrandkitError) WithComponent(component string) *BrandkitError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *BrandkitError {
	return &BrandkitError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewProcessingError creates an image processing error. Processing errors are
// isolated to a single asset, so they are recoverable for the pipeline.
func NewProcessingError(code, message string, cause error) *BrandkitError {
	return &BrandkitError{
		Type:        ErrorTypeProcessing,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BrandkitError {
	return &BrandkitError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *BrandkitError {
	return &BrandkitError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var be *BrandkitError
	if errors.As(err, &be) {
		return be.Recoverable
	}

	return false
}

// IsType reports whether err is a BrandkitError of the given type.
func IsType(err error, errType ErrorType) bool {
	var be *BrandkitError
	if errors.As(err, &be) {
		return be.Type == errType
	}

	return false
}

// HasCode reports whether any BrandkitError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var be *BrandkitError
		if !errors.As(err, &be) {
			return false
		}
		if be.Code == code {
			return true
		}
		err = be.Cause
	}

	return false
}

// Common error codes.
const (
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeNotRegularFile    = "ERR_NOT_REGULAR_FILE"
	ErrCodeUnsupportedFormat = "ERR_UNSUPPORTED_FORMAT"
	ErrCodeFileTooLarge      = "ERR_FILE_TOO_LARGE"
	ErrCodeDecodeFailed      = "ERR_DECODE_FAILED"
	ErrCodeEncodeFailed      = "ERR_ENCODE_FAILED"
	ErrCodeWriteFailed       = "ERR_WRITE_FAILED"
	ErrCodeBuildPath         = "ERR_BUILD_PATH"
	ErrCodeInjectionFailed   = "ERR_INJECTION_FAILED"
	ErrCodeInvalidPlan       = "ERR_INVALID_PLAN"
	ErrCodeStorageFailed     = "ERR_STORAGE_FAILED"
	ErrCodeAssetNotFound     = "ERR_ASSET_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodeInternalError     = "ERR_INTERNAL"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
	ErrCodePipelineFailed    = "ERR_PIPELINE_FAILED"
	ErrCodeBuildInProgress   = "ERR_BUILD_IN_PROGRESS"
)

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
	Suggestions() []string
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// Suggestions returns helpful suggestions for fixing the error.
func (fve *FieldValidationError) Suggestions() []string {
	return fve.HelpText
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	messages := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s",
		len(vec.Errors), strings.Join(messages, "; "))
}

// Add adds a validation error to the collection.
func (vec *ValidationErrorCollection) Add(err ValidationError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Add(NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToBrandkitError converts the validation collection to a BrandkitError.
func (vec *ValidationErrorCollection) ToBrandkitError(code string) *BrandkitError {
	if !vec.HasErrors() {
		return nil
	}

	var messages []string
	context := make(map[string]interface{})

	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		context[err.Field()] = map[string]interface{}{
			"value":       err.Value(),
			"suggestions": err.Suggestions(),
		}
	}

	errType := ErrorTypeValidation
	if code == ErrCodeConfigInvalid {
		errType = ErrorTypeConfig
	}

	return &BrandkitError{
		Type:        errType,
		Code:        code,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Recoverable: errType == ErrorTypeValidation,
	}
}

// Helper functions for common errors

// ErrFileNotFound creates a missing input file error.
func ErrFileNotFound(asset, path string, cause error) *BrandkitError {
	return NewIOError(ErrCodeFileNotFound, "asset file not found", cause).
		WithAsset(asset).
		WithFile(path)
}

// ErrUnsupportedFormat creates an unsupported format error.
func ErrUnsupportedFormat(asset, format string) *BrandkitError {
	return NewProcessingError(
		ErrCodeUnsupportedFormat,
		"unsupported file format: "+format,
		nil,
	).WithAsset(asset)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *BrandkitError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}
