package playerjs

import (
	"errors"
	"sync"
)

// Strategy decodes signature and throttle parameters for one player build.
// Strategies are probed in registration order; a strategy that cannot be
// constructed from the player JS is skipped.
type Strategy interface {
	Name() string
	DecodeSignature(s string) (string, error)
	DecodeThrottle(n string) (string, error)
}

type strategyFactory func(jsBody []byte) (Strategy, error)

// strategyFactories lists decode strategies newest-compatible first. The op
// list extractor handles classic player builds; the runtime executor handles
// builds whose transforms resist static extraction.
var strategyFactories = []strategyFactory{
	newOpListStrategy,
	newRuntimeStrategy,
}

// Decipherer decodes the s and n parameters of a single player JS build.
// Safe for concurrent use.
type Decipherer struct {
	jsBody []byte

	once       sync.Once
	strategies []Strategy
	buildErrs  []error
}

func NewDecipherer(jsBody string) *Decipherer {
	return &Decipherer{jsBody: []byte(jsBody)}
}

func (d *Decipherer) load() []Strategy {
	d.once.Do(func() {
		for _, build := range strategyFactories {
			s, err := build(d.jsBody)
			if err != nil {
				d.buildErrs = append(d.buildErrs, err)
				continue
			}
			d.strategies = append(d.strategies, s)
		}
	})
	return d.strategies
}

// DecipherSignature decodes the cipher query's s parameter.
func (d *Decipherer) DecipherSignature(s string) (string, error) {
	var errs []error
	for _, st := range d.load() {
		decoded, err := st.DecodeSignature(s)
		if err == nil {
			return decoded, nil
		}
		errs = append(errs, err)
	}
	return "", d.exhausted(errs)
}

// DecipherN decodes the throttle n parameter.
func (d *Decipherer) DecipherN(n string) (string, error) {
	var errs []error
	for _, st := range d.load() {
		decoded, err := st.DecodeThrottle(n)
		if err == nil {
			return decoded, nil
		}
		errs = append(errs, err)
	}
	return "", d.exhausted(errs)
}

func (d *Decipherer) exhausted(callErrs []error) error {
	errs := append(callErrs, d.buildErrs...)
	if len(errs) == 0 {
		return errors.New("no decode strategy available for player build")
	}
	return errors.Join(errs...)
}
