// Project: Latent Health Discretization and Filtration

package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	cfg := Configf("parse worktype", "got %q", "both")
	assert.ErrorIs(t, cfg, ErrConfiguration)
	assert.NotErrorIs(t, cfg, ErrNumericalDomain)
	assert.Equal(t, `parse worktype: got "both"`, cfg.Error())

	dom := Domainf("reporting types", "variance %v", -0.5)
	assert.ErrorIs(t, dom, ErrNumericalDomain)
	assert.NotErrorIs(t, dom, ErrConfiguration)

	wrapped := fmt.Errorf("sex 0: %w", dom)
	var de *NumericalDomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "reporting types", de.Op)
}

func TestConfigurationErrorCause(t *testing.T) {
	err := &ConfigurationError{Op: "parse arguments", Msg: "node_count", Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "node_count")
}
