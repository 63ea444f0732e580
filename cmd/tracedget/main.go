// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command tracedget sends one traced HTTP request and exports its span.
//
//	tracedget [flags] <url>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/otel"

	"github.com/dubonzi/resttrace"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <url>\n%s\n", os.Args[0], err)
		os.Exit(2)
	}
	if err := run(context.Background(), cfg); err != nil {
		logrus.WithError(err).Error("request failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config) error {
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel,
	)))

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Warn("while flushing spans")
		}
	}()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(newPropagator(cfg))

	resttrace.SetGlobalTracer(resttrace.NewOtelTracer(resttrace.WithTracerName("tracedget")))

	cli := resty.New().SetTimeout(cfg.Timeout)
	resttrace.TraceClient(cli,
		resttrace.WithPropagation(cfg.Propagate),
		resttrace.WithHideURL(cfg.HideURL),
	)

	res, err := cli.R().SetContext(ctx).Execute(cfg.Method, cfg.URL)
	if err != nil {
		return err
	}

	logrus.WithContext(res.Request.Context()).WithFields(logrus.Fields{
		"status":   res.StatusCode(),
		"duration": res.Time(),
		"bytes":    res.Size(),
	}).Info("request complete")
	fmt.Println(res.String())
	return nil
}
