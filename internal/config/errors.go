package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEntityNotFound is returned by Storage when the requested file does not exist.
var ErrEntityNotFound = errors.New("entity not found")

// ConfigurationError describes a definition file that could not be loaded.
type ConfigurationError struct {
	FilePath  string `json:"filePath"`  // Full path to the file that caused the error
	FileName  string `json:"fileName"`  // Base name of the file
	Category  string `json:"category"`  // Definition category (workflows)
	ErrorType string `json:"errorType"` // Type of error (parse, validation, io)
	Message   string `json:"message"`   // Human-readable error message
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.Category, ce.FileName, ce.Message)
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// AddError adds a basic error to the collection with context
func (cec *ConfigurationErrorCollection) AddError(filePath, fileName, category, errorType, message string) {
	cec.Add(ConfigurationError{
		FilePath:  filePath,
		FileName:  fileName,
		Category:  category,
		ErrorType: errorType,
		Message:   message,
	})
}

// GetSummary returns a summary of all errors, one line per file.
func (cec *ConfigurationErrorCollection) GetSummary() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors"
	}

	parts := []string{fmt.Sprintf("Configuration Error Summary (%d total errors):", len(cec.Errors))}
	for _, err := range cec.Errors {
		parts = append(parts, fmt.Sprintf("  - %s (%s): %s", err.FileName, err.ErrorType, err.Message))
	}
	return strings.Join(parts, "\n")
}

// NewConfigurationErrorCollection creates a new empty error collection
func NewConfigurationErrorCollection() *ConfigurationErrorCollection {
	return &ConfigurationErrorCollection{
		Errors: make([]ConfigurationError, 0),
	}
}
