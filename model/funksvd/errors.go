// Copyright 2025 gorse Project Authors
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

package funksvd

import (
	"fmt"

	"github.com/juju/errors"
)

// ConfigurationError reports an invalid hyper-parameter or policy.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return errors.NotValid
}

// DataError reports an empty or degenerate training set.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "invalid training data: " + e.Reason
}

func (e *DataError) Unwrap() error {
	return errors.NotValid
}

// DivergenceError reports a non-finite value produced while training a feature.
// It usually means the learning rate is too large.
type DivergenceError struct {
	Feature int
	Epoch   int
	UserId  int64
	ItemId  int64
	Value   float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("training diverged at feature %d epoch %d (user %d, item %d): %v",
		e.Feature, e.Epoch, e.UserId, e.ItemId, e.Value)
}
