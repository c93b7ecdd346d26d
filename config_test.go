package proactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yamlConfig := LoadConfig("./cmd/config.yaml")
	require.Equal(t, "echo", yamlConfig.Engine.Name)
	require.Equal(t, 250, yamlConfig.Engine.TimeoutMs)
	require.Equal(t, "tcp", yamlConfig.Server.Net)
	require.Equal(t, "proactor-events", yamlConfig.Events.KafkaTopic)

	tomlConfig := LoadConfig("./cmd/config.toml")
	require.Equal(t, yamlConfig, tomlConfig)
}
