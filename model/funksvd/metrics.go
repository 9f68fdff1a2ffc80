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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const LabelFeature = "feature"

var (
	FitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "funksvd",
		Subsystem: "trainer",
		Name:      "fit_seconds",
	})
	FeatureEpochsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "funksvd",
		Subsystem: "trainer",
		Name:      "feature_epochs",
	}, []string{LabelFeature})
	FeatureMeanSquaredErrorVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "funksvd",
		Subsystem: "trainer",
		Name:      "feature_mean_squared_error",
	}, []string{LabelFeature})
	DivergenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "funksvd",
		Subsystem: "trainer",
		Name:      "divergence_total",
	})
)
