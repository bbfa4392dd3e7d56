// Project: Latent Health Discretization and Filtration

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"latenthealth/internal/apperr"
)

var validate = validator.New()

// Validate checks field ranges with struct tags, then the rules that tie
// fields to each other.
func (s *Specification) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s(%s)", fe.Field(), fe.Tag(), fe.Param()))
			}
			return apperr.Configf("validate "+s.Name, "%s", strings.Join(msgs, "; "))
		}
		return &apperr.ConfigurationError{Op: "validate " + s.Name, Msg: "struct validation", Err: err}
	}

	if len(s.CategoryCounts) != s.MeasureCount {
		return apperr.Configf("validate "+s.Name,
			"category_counts has %d entries for %d measures", len(s.CategoryCounts), s.MeasureCount)
	}
	if len(s.MeasureNames) > 0 && len(s.MeasureNames) != s.MeasureCount {
		return apperr.Configf("validate "+s.Name,
			"measure_names has %d entries for %d measures", len(s.MeasureNames), s.MeasureCount)
	}
	if want := s.ParamCount(); len(s.ParamVec) != want {
		return apperr.Configf("validate "+s.Name,
			"param_vec has %d entries, specification requires %d", len(s.ParamVec), want)
	}
	return nil
}
