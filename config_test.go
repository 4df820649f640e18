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
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rqe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\nserviceName: ordersvc\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "ordersvc", cfg.ServiceName)
}

func TestLoadConfig_EnvVarOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rqe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\n"), 0o644))

	require.NoError(t, os.Setenv(logLevelEnvVar, "debug"))
	defer os.Unsetenv(logLevelEnvVar)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_Logger_DefaultsWhenLevelUnparseable(t *testing.T) {
	cfg := Config{LogLevel: "not-a-level"}
	entry := cfg.Logger()
	require.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
	require.Equal(t, "rqe", entry.Data["service"])
}

func TestConfig_Logger_UsesServiceName(t *testing.T) {
	cfg := Config{LogLevel: "error", ServiceName: "ordersvc"}
	entry := cfg.Logger()
	require.Equal(t, logrus.ErrorLevel, entry.Logger.GetLevel())
	require.Equal(t, "ordersvc", entry.Data["service"])
}
