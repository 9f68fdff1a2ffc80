// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clamp bounds intermediate score estimates while a factorization model
// is trained and served.
package clamp

import (
	"math"

	"github.com/juju/errors"
)

const (
	IdentityName    = "identity"
	RangeName       = "range"
	ConditionalName = "conditional"
)

// Function bounds an estimate for a user-item pair. Implementations must be pure:
// the result depends on the arguments only.
type Function interface {
	Clamp(estimate float64, userId, itemId int64) float64
}

// Identity leaves estimates unchanged.
type Identity struct{}

func (Identity) Clamp(estimate float64, _, _ int64) float64 {
	return estimate
}

// Range clamps estimates into [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// NewRange creates a Range clamp. min must not exceed max.
func NewRange(min, max float64) (*Range, error) {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return nil, errors.NotValidf("clamp range [%v, %v]", min, max)
	}
	return &Range{Min: min, Max: max}, nil
}

func (r *Range) Clamp(estimate float64, _, _ int64) float64 {
	if estimate < r.Min {
		return r.Min
	} else if estimate > r.Max {
		return r.Max
	}
	return estimate
}

// Conditional clamps an estimate only on the side whose domain bound is set and
// exceeded. A nil bound leaves that side open, e.g. a non-negative domain has a
// lower bound only.
type Conditional struct {
	Lower *float64
	Upper *float64
}

// NewConditional creates a Conditional clamp. At least one bound is required.
func NewConditional(lower, upper *float64) (*Conditional, error) {
	if lower == nil && upper == nil {
		return nil, errors.NotValidf("conditional clamp without bounds")
	}
	if (lower != nil && math.IsNaN(*lower)) || (upper != nil && math.IsNaN(*upper)) {
		return nil, errors.NotValidf("conditional clamp with NaN bound")
	}
	if lower != nil && upper != nil && *lower > *upper {
		return nil, errors.NotValidf("conditional clamp bounds [%v, %v]", *lower, *upper)
	}
	c := &Conditional{}
	if lower != nil {
		c.Lower = ptr(*lower)
	}
	if upper != nil {
		c.Upper = ptr(*upper)
	}
	return c, nil
}

func (c *Conditional) Clamp(estimate float64, _, _ int64) float64 {
	if c.Lower != nil && estimate < *c.Lower {
		return *c.Lower
	}
	if c.Upper != nil && estimate > *c.Upper {
		return *c.Upper
	}
	return estimate
}

// New creates a clamping function by name. Range requires both bounds, while
// conditional accepts either of them.
func New(name string, min, max *float64) (Function, error) {
	switch name {
	case IdentityName, "":
		return Identity{}, nil
	case RangeName:
		if min == nil || max == nil {
			return nil, errors.NotValidf("range clamp without both bounds")
		}
		return NewRange(*min, *max)
	case ConditionalName:
		return NewConditional(min, max)
	}
	return nil, errors.NotSupportedf("clamping function %q", name)
}

func ptr(v float64) *float64 {
	return &v
}
