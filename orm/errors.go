package orm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across the typed errors below.
var (
	// ErrInvalidInput is matched by InputError and InvalidNameError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoRoute is matched when no walk connects the requested destinations.
	ErrNoRoute = errors.New("no route found")
	// ErrAmbiguousRoute is matched when more than one rule fits a lookup.
	ErrAmbiguousRoute = errors.New("multiple matches found")
)

// InputError reports caller misuse: unregistered types, missing outputs,
// unknown properties or destinations absent from an explicit chain.
type InputError struct {
	Message string
}

// Error returns the error message for InputError.
func (e *InputError) Error() string {
	return "input error: " + e.Message
}

// Unwrap returns ErrInvalidInput.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func inputErrorf(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// InvalidNameError is returned when an identifier fails the naming rules.
type InvalidNameError struct {
	Name    string
	Context string // "class", "property", "schema", "table"
}

// Error returns the error message for InvalidNameError.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name %q", e.Context, e.Name)
}

// Unwrap returns ErrInvalidInput.
func (e *InvalidNameError) Unwrap() error {
	return ErrInvalidInput
}

// RouteResolutionError is returned when routing finds no walk, or finds
// several equally valid rules where exactly one is required.
type RouteResolutionError struct {
	// Cause is ErrNoRoute or ErrAmbiguousRoute.
	Cause error
	// Detail names what was being resolved.
	Detail string
	// Matches lists the competing rules for an ambiguous lookup.
	Matches []Rule
}

// Error returns the error message for RouteResolutionError.
func (e *RouteResolutionError) Error() string {
	msg := e.Cause.Error()
	if e.Detail != "" {
		msg += " for " + e.Detail
	}
	if len(e.Matches) > 0 {
		parts := make([]string, len(e.Matches))
		for i, r := range e.Matches {
			parts[i] = r.String()
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	return msg
}

// Unwrap returns the underlying sentinel.
func (e *RouteResolutionError) Unwrap() error {
	return e.Cause
}

// SetupError aborts schema registration. No partial schema is published.
type SetupError struct {
	Schema  string
	Message string
	Cause   error
}

// Error returns the error message for SetupError.
func (e *SetupError) Error() string {
	msg := fmt.Sprintf("setting up schema %q: %s", e.Schema, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *SetupError) Unwrap() error {
	return e.Cause
}

// MalformedRowError is returned when a result column name does not follow
// the aliasing scheme.
type MalformedRowError struct {
	Column string
	Reason string
}

// Error returns the error message for MalformedRowError.
func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed result column %q: %s", e.Column, e.Reason)
}

// UnresolvedEntityError is returned when a result row names an entity that
// is not a registered concrete type.
type UnresolvedEntityError struct {
	Name string
}

// Error returns the error message for UnresolvedEntityError.
func (e *UnresolvedEntityError) Error() string {
	return fmt.Sprintf("result row names unresolved entity %q", e.Name)
}

// UnresolvedRelationshipError is returned when a result row names a
// relationship that is not a registered instantiable relationship.
type UnresolvedRelationshipError struct {
	Name string
}

// Error returns the error message for UnresolvedRelationshipError.
func (e *UnresolvedRelationshipError) Error() string {
	return fmt.Sprintf("result row names unresolved relationship %q", e.Name)
}

// AmbiguousLookupError is returned by type-based row lookups when more
// than one instance of the type is present.
type AmbiguousLookupError struct {
	Type    string
	Aliases []string
}

// Error returns the error message for AmbiguousLookupError.
func (e *AmbiguousLookupError) Error() string {
	return fmt.Sprintf("%s is ambiguous in this row (aliases %s): use an explicit alias",
		e.Type, strings.Join(e.Aliases, ", "))
}

// NotFoundError is returned by row accessors when nothing is stored under
// the requested key.
type NotFoundError struct {
	Key string
}

// Error returns the error message for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.Key)
}
