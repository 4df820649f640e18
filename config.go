// Copyright 2020-2021 Dolthub, Inc.
//
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

package rqe

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const logLevelEnvVar = "RQE_LOG_LEVEL"

// Config configures an Engine, loadable from YAML (spec §5's ambient
// configuration surface — none of the algorithm itself is
// configurable, only the logging/tracing scaffolding around it).
type Config struct {
	// LogLevel is parsed with logrus.ParseLevel; empty means Info.
	LogLevel string `yaml:"logLevel"`
	// ServiceName is the "service" field of the logger that Logger
	// builds; empty means "rqe".
	ServiceName string `yaml:"serviceName"`
}

// LoadConfig reads a Config from YAML at path, applying the
// RQE_LOG_LEVEL environment variable as an override the same way the
// teacher's experimentalFlag env var overrides a compiled-in default.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	if v := os.Getenv(logLevelEnvVar); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// Logger builds the logrus entry an Engine logs through, per cfg's
// LogLevel and ServiceName.
func (cfg Config) Logger() *logrus.Entry {
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l := logrus.New()
	l.SetLevel(lvl)
	name := cfg.ServiceName
	if name == "" {
		name = "rqe"
	}
	return l.WithField("service", name)
}
