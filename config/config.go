// Package config holds the run configuration shared by the pipeline, the
// functional emulator and the command-line tools.
package config

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the machine and run parameters of a simulation.
type Config struct {
	// DataMemoryWords is the size of data memory in 32-bit words.
	// Default: 1024.
	DataMemoryWords int `json:"data_memory_words" yaml:"data_memory_words"`

	// MaxCycles bounds a pipeline run. The emulator uses it as its
	// instruction limit. 0 means unbounded. Default: 1000000.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// HardwireZero makes x0 read as zero. Default: false.
	HardwireZero bool `json:"hardwire_zero" yaml:"hardwire_zero"`

	// InitialMemory maps word addresses to their initial values.
	InitialMemory map[int]int32 `json:"initial_memory,omitempty" yaml:"initial_memory,omitempty"`

	// InitialRegisters maps register numbers to their initial values.
	InitialRegisters map[int]int32 `json:"initial_registers,omitempty" yaml:"initial_registers,omitempty"`
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		DataMemoryWords: emu.DefaultMemoryWords,
		MaxCycles:       1_000_000,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads a Config from a YAML (.yaml, .yml) or JSON file. Fields
// missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	config := DefaultConfig()

	if isYAML(path) {
		err = loadYAML(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}

	if err != nil {
		return nil, errors.Wrap(err, "parse config %v", path)
	}

	return config, nil
}

// yamlConfig mirrors Config with loosely typed map keys. go-yaml writes
// integer map keys quoted, so both "11" and 11 must decode.
type yamlConfig struct {
	DataMemoryWords  int           `yaml:"data_memory_words"`
	MaxCycles        uint64        `yaml:"max_cycles"`
	HardwireZero     bool          `yaml:"hardwire_zero"`
	InitialMemory    map[any]int32 `yaml:"initial_memory"`
	InitialRegisters map[any]int32 `yaml:"initial_registers"`
}

func loadYAML(data []byte, config *Config) error {
	raw := yamlConfig{
		DataMemoryWords: config.DataMemoryWords,
		MaxCycles:       config.MaxCycles,
		HardwireZero:    config.HardwireZero,
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	config.DataMemoryWords = raw.DataMemoryWords
	config.MaxCycles = raw.MaxCycles
	config.HardwireZero = raw.HardwireZero

	var err error

	config.InitialMemory, err = intKeys(raw.InitialMemory)
	if err != nil {
		return errors.Wrap(err, "initial_memory")
	}

	config.InitialRegisters, err = intKeys(raw.InitialRegisters)
	if err != nil {
		return errors.Wrap(err, "initial_registers")
	}

	return nil
}

func intKeys(m map[any]int32) (map[int]int32, error) {
	if m == nil {
		return nil, nil
	}

	out := make(map[int]int32, len(m))

	for k, v := range m {
		var key int

		switch k := k.(type) {
		case int:
			key = k
		case int64:
			key = int(k)
		case uint64:
			key = int(k)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil {
				return nil, errors.Wrap(err, "key %q", k)
			}
			key = n
		default:
			return nil, errors.New("key %v is not an integer", k)
		}

		out[key] = v
	}

	return out, nil
}

// SaveConfig writes the Config to path, as YAML or JSON by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return errors.Wrap(err, "serialize config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write config file")
	}

	return nil
}

// Validate checks that memory is non-empty and every initial value names a
// real register or memory word.
func (c *Config) Validate() error {
	if c.DataMemoryWords <= 0 {
		return errors.Wrap(ErrInvalidConfig, "data_memory_words must be > 0")
	}

	for addr := range c.InitialMemory {
		if addr < 0 || addr >= c.DataMemoryWords {
			return errors.Wrap(ErrInvalidConfig, "initial_memory address %d outside [0, %d)", addr, c.DataMemoryWords)
		}
	}

	for reg := range c.InitialRegisters {
		if reg < 0 || reg >= emu.NumRegs {
			return errors.Wrap(ErrInvalidConfig, "initial_registers: no register x%d", reg)
		}
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.InitialMemory = maps.Clone(c.InitialMemory)
	clone.InitialRegisters = maps.Clone(c.InitialRegisters)

	return &clone
}

// Build validates the Config and returns a register file and data memory
// holding its initial state.
func (c *Config) Build() (*emu.RegFile, *emu.Memory, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	regFile := &emu.RegFile{HardwireZero: c.HardwireZero}
	regFile.Load(c.InitialRegisters)

	memory := emu.NewMemory(c.DataMemoryWords)
	if err := memory.Load(c.InitialMemory); err != nil {
		return nil, nil, errors.Wrap(err, "initial memory")
	}

	return regFile, memory, nil
}

// PipelineOptions returns the pipeline options this Config implies.
func (c *Config) PipelineOptions() []pipeline.PipelineOption {
	return []pipeline.PipelineOption{
		pipeline.WithMaxCycles(c.MaxCycles),
		pipeline.WithHardwiredZero(c.HardwireZero),
	}
}

// EmulatorOptions returns the emulator options for running with the given
// state, as produced by Build.
func (c *Config) EmulatorOptions(regFile *emu.RegFile, memory *emu.Memory) []emu.EmulatorOption {
	return []emu.EmulatorOption{
		emu.WithRegFile(regFile),
		emu.WithMemory(memory),
		emu.WithMaxInstructions(c.MaxCycles),
	}
}
