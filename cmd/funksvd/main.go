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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/config"
	"github.com/gorse-io/funksvd/engine"
	"github.com/gorse-io/funksvd/model/funksvd"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "funksvd",
		Short:         "Train FunkSVD models on explicit ratings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	trainCommand := &cobra.Command{
		Use:   "train",
		Short: "Train a model and optionally score user-item pairs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return train(cmd)
		},
	}
	log.AddFlags(trainCommand.Flags())
	trainCommand.Flags().Bool("debug", false, "use debug log mode")
	trainCommand.Flags().StringP("config", "c", "", "configuration file path")
	trainCommand.Flags().String("data", "", "path of the rating file (overrides data.path)")
	trainCommand.Flags().String("database", "", "rating database URL (overrides data.database)")
	trainCommand.Flags().StringArray("predict", nil, "user-item pair to score after training, as user:item")
	rootCommand.AddCommand(trainCommand)
	return rootCommand
}

// train runs the train command. Logs go to stderr and tables to the command
// output, so the output stays parseable.
func train(cmd *cobra.Command) error {
	// setup logger
	debug, _ := cmd.Flags().GetBool("debug")
	log.SetLogger(cmd.Flags(), debug)

	// load config
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	if cmd.Flags().Changed("data") {
		conf.Data.Path, _ = cmd.Flags().GetString("data")
		conf.Data.Database = ""
	}
	if cmd.Flags().Changed("database") {
		conf.Data.Database, _ = cmd.Flags().GetString("database")
	}
	if err = conf.Validate(); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	predict, _ := cmd.Flags().GetStringArray("predict")
	pairs, err := parsePairs(predict)
	if err != nil {
		return errors.Trace(err)
	}

	// setup tracing
	tp, err := conf.Tracing.NewTracerProvider()
	if err != nil {
		return errors.Annotate(err, "failed to create trace provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(log.GetErrorHandler())
	defer func() {
		if sdkProvider, ok := tp.(*tracesdk.TracerProvider); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sdkProvider.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown trace provider", zap.Error(err))
			}
		}
	}()

	// open ratings
	source, closeSource, err := engine.OpenSource(&conf.Data)
	if err != nil {
		return errors.Annotate(err, "failed to open ratings")
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Logger().Error("failed to close ratings", zap.Error(err))
		}
	}()

	// train
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	bar := progressbar.NewOptions(conf.Model.FeatureCount,
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("features"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
	completed := 0
	e, err := engine.NewFactory(conf, source).
		SetEpochListener(func(stats funksvd.EpochStats) {
			if stats.Feature > completed {
				_ = bar.Add(stats.Feature - completed)
				completed = stats.Feature
			}
			bar.Describe(fmt.Sprintf("Training feature %d epoch %d (mse %.6f)", stats.Feature, stats.Epoch, stats.MeanSquaredError))
		}).
		Create(ctx)
	if err != nil {
		_ = bar.Exit()
		return errors.Trace(err)
	}
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())

	// report
	if err = renderFeatures(cmd.OutOrStdout(), e.Model()); err != nil {
		return errors.Annotate(err, "failed to render features")
	}
	if len(pairs) > 0 {
		scores, err := e.PredictBatch(ctx, pairs)
		if err != nil {
			return errors.Annotate(err, "failed to predict")
		}
		if err = renderPredictions(cmd.OutOrStdout(), e.Model(), pairs, scores); err != nil {
			return errors.Annotate(err, "failed to render predictions")
		}
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
