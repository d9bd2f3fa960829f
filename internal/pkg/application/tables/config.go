package tables

import (
	"io"

	yaml "gopkg.in/yaml.v2"
)

type TableSeed struct {
	Name    string              `yaml:"name"`
	Records []map[string]string `yaml:"records"`
}

type Config struct {
	Tables []TableSeed `yaml:"tables"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}
