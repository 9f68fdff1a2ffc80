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

package config

import (
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/dataset"
	"github.com/gorse-io/funksvd/model"
	"github.com/gorse-io/funksvd/model/baseline"
	"github.com/gorse-io/funksvd/model/clamp"
	"github.com/gorse-io/funksvd/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the configuration of a FunkSVD engine.
type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	Clamp    ClampConfig    `mapstructure:"clamp"`
	Baseline BaselineConfig `mapstructure:"baseline"`
	Data     DataConfig     `mapstructure:"data"`
	Predict  PredictConfig  `mapstructure:"predict"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ModelConfig is the configuration of training.
type ModelConfig struct {
	FeatureCount         int           `mapstructure:"feature_count" validate:"gt=0"`
	LearningRate         float64       `mapstructure:"learning_rate" validate:"gt=0"`
	Regularization       float64       `mapstructure:"regularization" validate:"gte=0"`
	MaxEpochs            int           `mapstructure:"max_epochs" validate:"gt=0"`
	MinEpochs            int           `mapstructure:"min_epochs" validate:"gte=0,ltefield=MaxEpochs"`
	ConvergenceThreshold float64       `mapstructure:"convergence_threshold" validate:"gte=0"`
	InitValue            float64       `mapstructure:"init_value"`
	FitTimeout           time.Duration `mapstructure:"fit_timeout" validate:"gte=0"` // zero means no timeout
}

// GetParams converts the configuration to hyper-parameters.
func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:  c.FeatureCount,
		model.Lr:        c.LearningRate,
		model.Reg:       c.Regularization,
		model.NEpochs:   c.MaxEpochs,
		model.MinEpochs: c.MinEpochs,
		model.Threshold: c.ConvergenceThreshold,
		model.InitValue: c.InitValue,
	}
}

// ClampConfig is the configuration of the clamping function. Range requires
// both bounds while conditional requires at least one.
type ClampConfig struct {
	Type string   `mapstructure:"type" validate:"oneof=identity range conditional"`
	Min  *float64 `mapstructure:"min"`
	Max  *float64 `mapstructure:"max"`
}

func (c *ClampConfig) NewFunction() (clamp.Function, error) {
	return clamp.New(c.Type, c.Min, c.Max)
}

// BaselineConfig is the configuration of the baseline predictor.
type BaselineConfig struct {
	Type    string  `mapstructure:"type" validate:"oneof=constant global_mean item_mean user_item_mean"`
	Damping float64 `mapstructure:"damping" validate:"gte=0"`
	Value   float64 `mapstructure:"value"` // used by the constant baseline
}

func (c *BaselineConfig) NewPredictor(ratings []dataset.Rating) (baseline.Predictor, error) {
	return baseline.New(c.Type, c.Value, c.Damping, ratings)
}

// DataConfig locates training ratings: a CSV file or a database.
type DataConfig struct {
	Path        string `mapstructure:"path" validate:"required_without=Database"`
	Separator   string `mapstructure:"separator" validate:"required"`
	Header      bool   `mapstructure:"header"`
	Database    string `mapstructure:"database" validate:"omitempty,database"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type PredictConfig struct {
	Jobs int `mapstructure:"jobs" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			FeatureCount:         20,
			LearningRate:         0.001,
			Regularization:       0.015,
			MaxEpochs:            100,
			MinEpochs:            1,
			ConvergenceThreshold: 1e-5,
			InitValue:            0.1,
		},
		Clamp: ClampConfig{
			Type: clamp.IdentityName,
		},
		Baseline: BaselineConfig{
			Type:    baseline.ItemMeanName,
			Damping: 5,
		},
		Data: DataConfig{
			Separator: ",",
		},
		Predict: PredictConfig{
			Jobs: runtime.NumCPU(),
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.feature_count", defaultConfig.Model.FeatureCount)
	v.SetDefault("model.learning_rate", defaultConfig.Model.LearningRate)
	v.SetDefault("model.regularization", defaultConfig.Model.Regularization)
	v.SetDefault("model.max_epochs", defaultConfig.Model.MaxEpochs)
	v.SetDefault("model.min_epochs", defaultConfig.Model.MinEpochs)
	v.SetDefault("model.convergence_threshold", defaultConfig.Model.ConvergenceThreshold)
	v.SetDefault("model.init_value", defaultConfig.Model.InitValue)
	v.SetDefault("model.fit_timeout", defaultConfig.Model.FitTimeout)
	// [clamp]
	v.SetDefault("clamp.type", defaultConfig.Clamp.Type)
	// [baseline]
	v.SetDefault("baseline.type", defaultConfig.Baseline.Type)
	v.SetDefault("baseline.damping", defaultConfig.Baseline.Damping)
	v.SetDefault("baseline.value", defaultConfig.Baseline.Value)
	// [data]
	v.SetDefault("data.path", defaultConfig.Data.Path)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	v.SetDefault("data.database", defaultConfig.Data.Database)
	v.SetDefault("data.table_prefix", defaultConfig.Data.TablePrefix)
	// [predict]
	v.SetDefault("predict.jobs", defaultConfig.Predict.Jobs)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"model.feature_count", "FUNKSVD_FEATURE_COUNT"},
	{"model.learning_rate", "FUNKSVD_LEARNING_RATE"},
	{"model.regularization", "FUNKSVD_REGULARIZATION"},
	{"model.max_epochs", "FUNKSVD_MAX_EPOCHS"},
	{"model.min_epochs", "FUNKSVD_MIN_EPOCHS"},
	{"model.convergence_threshold", "FUNKSVD_CONVERGENCE_THRESHOLD"},
	{"model.init_value", "FUNKSVD_INIT_VALUE"},
	{"model.fit_timeout", "FUNKSVD_FIT_TIMEOUT"},
	{"clamp.type", "FUNKSVD_CLAMP_TYPE"},
	{"clamp.min", "FUNKSVD_CLAMP_MIN"},
	{"clamp.max", "FUNKSVD_CLAMP_MAX"},
	{"baseline.type", "FUNKSVD_BASELINE_TYPE"},
	{"baseline.damping", "FUNKSVD_BASELINE_DAMPING"},
	{"baseline.value", "FUNKSVD_BASELINE_VALUE"},
	{"data.path", "FUNKSVD_DATA_PATH"},
	{"data.separator", "FUNKSVD_DATA_SEPARATOR"},
	{"data.header", "FUNKSVD_DATA_HEADER"},
	{"data.database", "FUNKSVD_DATABASE"},
	{"data.table_prefix", "FUNKSVD_TABLE_PREFIX"},
	{"predict.jobs", "FUNKSVD_PREDICT_JOBS"},
	{"tracing.enable_tracing", "FUNKSVD_ENABLE_TRACING"},
	{"tracing.exporter", "FUNKSVD_TRACING_EXPORTER"},
	{"tracing.collector_endpoint", "FUNKSVD_COLLECTOR_ENDPOINT"},
	{"tracing.sampler", "FUNKSVD_TRACING_SAMPLER"},
	{"tracing.ratio", "FUNKSVD_TRACING_RATIO"},
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. Environment
// variables override the file. An empty path loads defaults and environment
// variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks field constraints and cross-field rules. Messages of all
// violations are joined into a single NotValid error.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("database", func(fl validator.FieldLevel) bool {
		return storage.IsSupported(fl.Field().String())
	}); err != nil {
		return errors.Trace(err)
	}
	validate.RegisterStructValidation(validateClamp, ClampConfig{})

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		return errors.Trace(err)
	}
	for tag, text := range map[string]string{
		"database":     "{0} must start with mysql://, postgres://, postgresql:// or sqlite://",
		"clamp_bounds": "{0} is required by the clamp type",
		"clamp_order":  "{0} must not be less than min",
	} {
		if err := validate.RegisterTranslation(tag, translator, func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			message, _ := ut.T(fe.Tag(), fe.Field())
			return message
		}); err != nil {
			return errors.Trace(err)
		}
	}

	err := validate.Struct(config)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
			return e.Translate(translator)
		})
		return errors.NotValidf("config: %s", strings.Join(messages, "; "))
	}
	return errors.Trace(err)
}

func validateClamp(sl validator.StructLevel) {
	c := sl.Current().Interface().(ClampConfig)
	switch c.Type {
	case clamp.RangeName:
		if c.Min == nil {
			sl.ReportError(c.Min, "min", "Min", "clamp_bounds", "")
		}
		if c.Max == nil {
			sl.ReportError(c.Max, "max", "Max", "clamp_bounds", "")
		}
	case clamp.ConditionalName:
		if c.Min == nil && c.Max == nil {
			sl.ReportError(c.Min, "min", "Min", "clamp_bounds", "")
		}
	}
	if c.Min != nil && c.Max != nil && *c.Max < *c.Min {
		sl.ReportError(c.Max, "max", "Max", "clamp_order", "")
	}
}
