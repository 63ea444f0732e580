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


package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	URL         string
	Method      string
	Propagate   bool
	Exporter    string
	Endpoint    string
	Insecure    bool
	Propagator  string
	ServiceName string
	Timeout     time.Duration
	HideURL     bool
	Debug       bool
}

// loadConfig reads flags, then TRACEDGET_* environment variables for
// anything not given on the command line.
func loadConfig(args []string) (*config, error) {
	flags := pflag.NewFlagSet("tracedget", pflag.ContinueOnError)
	flags.String("method", "GET", "HTTP method")
	flags.Bool("propagate", true, "inject trace context into request headers")
	flags.String("exporter", "stdout", "span exporter: stdout, otlp or none")
	flags.String("endpoint", "", "OTLP/HTTP collector endpoint (host:port)")
	flags.Bool("insecure", false, "use plain HTTP for the OTLP exporter")
	flags.String("propagator", "tracecontext", "header format: tracecontext or b3")
	flags.String("service-name", "tracedget", "service.name resource attribute")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	flags.Bool("hide-url", false, "strip query and userinfo from the http.url tag")
	flags.Bool("debug", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("tracedget")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "while binding flags")
	}

	cfg := &config{
		URL:         v.GetString("url"),
		Method:      strings.ToUpper(v.GetString("method")),
		Propagate:   v.GetBool("propagate"),
		Exporter:    v.GetString("exporter"),
		Endpoint:    v.GetString("endpoint"),
		Insecure:    v.GetBool("insecure"),
		Propagator:  v.GetString("propagator"),
		ServiceName: v.GetString("service-name"),
		Timeout:     v.GetDuration("timeout"),
		HideURL:     v.GetBool("hide-url"),
		Debug:       v.GetBool("debug"),
	}
	if flags.NArg() > 0 {
		cfg.URL = flags.Arg(0)
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.URL == "" {
		return errors.New("a URL is required, as first argument or TRACEDGET_URL")
	}
	switch c.Exporter {
	case "stdout", "otlp", "none":
	default:
		return errors.Errorf("unknown exporter %q", c.Exporter)
	}
	switch c.Propagator {
	case "tracecontext", "b3":
	default:
		return errors.Errorf("unknown propagator %q", c.Propagator)
	}
	return nil
}
