package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfiguration is matched by every ValidationError.
var ErrInvalidConfiguration = errors.New("invalid scoring configuration")

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidConfiguration.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks ranges with struct tags and then the ordering rules between
// tiers. All problems are reported together.
func (c Configuration) Validate() error {
	var problems []string
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ValidationError{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s", trimRoot(fe.Namespace()), tagText(fe)))
		}
	}

	order := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	pd := c.PriceDrop
	order(pd.Strong > pd.Medium && pd.Medium > pd.Low && pd.Low > pd.Minimum,
		"price_drop thresholds must be strictly ordered strong > medium > low > minimum")

	tiers := []struct {
		name string
		t    DecisionThresholds
	}{
		{"strong_buy", c.StrongBuy},
		{"buy", c.Buy},
		{"cautious_buy", c.CautiousBuy},
		{"watch", c.Watch},
	}
	for i := 1; i < len(tiers); i++ {
		hi, lo := tiers[i-1], tiers[i]
		order(hi.t.MinOpportunity >= lo.t.MinOpportunity,
			fmt.Sprintf("%s.min_opportunity must be >= %s.min_opportunity", hi.name, lo.name))
		order(hi.t.MaxRisk <= lo.t.MaxRisk,
			fmt.Sprintf("%s.max_risk must be <= %s.max_risk", hi.name, lo.name))
		order(hi.t.MinConfidence >= lo.t.MinConfidence,
			fmt.Sprintf("%s.min_confidence must be >= %s.min_confidence", hi.name, lo.name))
	}
	order(c.Avoid.MaxRisk >= c.Watch.MaxRisk, "avoid.max_risk must be >= watch.max_risk")

	v := c.Volatility
	order(v.Low < v.Medium && v.Medium < v.High, "volatility thresholds must be strictly ordered low < medium < high")
	cf := c.ChangeFrequency
	order(cf.Low < cf.Medium && cf.Medium < cf.High, "change_frequency thresholds must be strictly ordered low < medium < high")
	u := c.Underwater
	order(u.Mild < u.Moderate && u.Moderate < u.Severe, "underwater thresholds must be strictly ordered mild < moderate < severe")

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func trimRoot(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
