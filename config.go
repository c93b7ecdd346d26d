package proactor

import (
	"io/ioutil"
	"log"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

type Global struct {
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

type EngineConfig struct {
	Name             string `yaml:"name" toml:"name"`
	TimeoutMs        int    `yaml:"timeout_ms" toml:"timeout_ms"`
	EventBufferSize  int    `yaml:"event_buffer_size" toml:"event_buffer_size"`
	LockOsThread     bool   `yaml:"lock_os_thread" toml:"lock_os_thread"`
	InlineCompletion bool   `yaml:"inline_completion" toml:"inline_completion"`
}

type ServerConfig struct {
	Net     string `yaml:"net" toml:"net"`
	Address string `yaml:"address" toml:"address"`
}

type EventsConfig struct {
	KafkaBrokers string `yaml:"kafka_brokers" toml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_topic" toml:"kafka_topic"`
}

type Config struct {
	Global Global       `yaml:"global" toml:"global"`
	Engine EngineConfig `yaml:"engine" toml:"engine"`
	Server ServerConfig `yaml:"server" toml:"server"`
	Events EventsConfig `yaml:"events" toml:"events"`
}

func LoadConfig(filePath string) *Config {
	file, err := ioutil.ReadFile(filePath)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	config := &Config{}
	if strings.HasSuffix(filePath, ".toml") {
		err = toml.Unmarshal(file, config)
	} else if strings.HasSuffix(filePath, ".yaml") {
		err = yaml.Unmarshal(file, config)
	}
	if err != nil {
		log.Fatalf("%+v", err)
	}
	return config
}
