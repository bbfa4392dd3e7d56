// Project: Latent Health Discretization and Filtration

// Package apperr holds the two failure kinds that abort a run: a bad
// configuration and a numerically impossible parameterization.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds, matched with errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrNumericalDomain = errors.New("numerical domain error")
)

// ConfigurationError reports an invalid run mode, grid layout or a
// discretization that does not fit the binary file format.
type ConfigurationError struct {
	Op  string
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// NumericalDomainError reports a moment-matching constraint that solved to a
// negative variance, or a probability vector that collapsed to zero mass.
type NumericalDomainError struct {
	Op  string
	Msg string
}

func (e *NumericalDomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *NumericalDomainError) Unwrap() error { return ErrNumericalDomain }

// Configf builds a ConfigurationError with a formatted message.
func Configf(op, format string, args ...any) error {
	return &ConfigurationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Domainf builds a NumericalDomainError with a formatted message.
func Domainf(op, format string, args ...any) error {
	return &NumericalDomainError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
