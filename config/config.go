// Package config holds the explicit configuration shared by the server
// launcher, the benchmark driver and the aggregator: tool location, file
// layout, certificate lookup and per-suite defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"github.com/weiihann/tlsbench/harness"
	"github.com/weiihann/tlsbench/registry"
)

// Config is the run configuration. The zero value is not useful; start
// from Default.
type Config struct {
	OpenSSLPath string `yaml:"openssl_path"`

	DataDir    string `yaml:"data_dir"`
	LogsDir    string `yaml:"logs_dir"`
	ResultsDir string `yaml:"results_dir"`
	PKIDir     string `yaml:"pki_dir"`

	// DefaultKEM is the group used by every server and client of the
	// sig suite.
	DefaultKEM string `yaml:"default_kem"`
	// DefaultSignature is the certificate used by every server of the
	// kex suite.
	DefaultSignature string `yaml:"default_signature"`

	Resource    string `yaml:"resource"`
	VerifyDepth int    `yaml:"verify_depth"`
	GroupsEnv   string `yaml:"groups_env"`

	// ClientArgs and ServerArgs are shell-quoted extra arguments appended
	// to every s_time and s_server invocation.
	ClientArgs string `yaml:"client_args"`
	ServerArgs string `yaml:"server_args"`

	Registries []registry.Registry `yaml:"registries"`
}

// Default returns the configuration matching the layout the benchmark
// scripts have always used.
func Default() Config {
	return Config{
		OpenSSLPath:      "/opt/oqs/openssl/bin/openssl",
		DataDir:          "data",
		LogsDir:          "logs",
		ResultsDir:       "results",
		PKIDir:           "pki",
		DefaultKEM:       "x25519",
		DefaultSignature: "prime256v1",
		Resource:         "/index.html",
		VerifyDepth:      2,
		GroupsEnv:        harness.DefaultGroupsEnv,
	}
}

// Load returns Default overlaid with the YAML document read from r.
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	for i := range cfg.Registries {
		if err := cfg.Registries[i].Validate(); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads a YAML config file. An empty path returns Default.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Environment variables that override file and default values.
const (
	EnvOpenSSL    = "TLSBENCH_OPENSSL"
	EnvDataDir    = "TLSBENCH_DATA_DIR"
	EnvLogsDir    = "TLSBENCH_LOGS_DIR"
	EnvResultsDir = "TLSBENCH_RESULTS_DIR"
	EnvPKIDir     = "TLSBENCH_PKI_DIR"
)

// ApplyEnv overrides fields from TLSBENCH_* environment variables.
func (c *Config) ApplyEnv() {
	c.OpenSSLPath = getEnv(EnvOpenSSL, c.OpenSSLPath)
	c.DataDir = getEnv(EnvDataDir, c.DataDir)
	c.LogsDir = getEnv(EnvLogsDir, c.LogsDir)
	c.ResultsDir = getEnv(EnvResultsDir, c.ResultsDir)
	c.PKIDir = getEnv(EnvPKIDir, c.PKIDir)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// Registry resolves the active registry by name, preferring registries
// declared in the config over the built-ins. An empty name selects the
// default registry of suite. The registry must belong to suite.
func (c *Config) Registry(name string, suite registry.Suite) (*registry.Registry, error) {
	if name == "" {
		name = registry.Default(suite)
	}

	custom := make([]*registry.Registry, len(c.Registries))
	for i := range c.Registries {
		custom[i] = &c.Registries[i]
	}

	reg, err := registry.Resolve(name, custom)
	if err != nil {
		return nil, err
	}

	if reg.Suite != suite {
		return nil, fmt.Errorf("registry %s belongs to suite %s, not %s",
			reg.Name, reg.Suite, suite)
	}

	return reg, nil
}

// Tool returns the toolkit description with extra arguments split the way
// a shell would.
func (c *Config) Tool() (harness.Tool, error) {
	clientArgs, err := shlex.Split(c.ClientArgs)
	if err != nil {
		return harness.Tool{}, fmt.Errorf("parse client_args: %w", err)
	}

	serverArgs, err := shlex.Split(c.ServerArgs)
	if err != nil {
		return harness.Tool{}, fmt.Errorf("parse server_args: %w", err)
	}

	return harness.Tool{
		Path:       c.OpenSSLPath,
		ClientArgs: clientArgs,
		ServerArgs: serverArgs,
		GroupsEnv:  c.GroupsEnv,
	}, nil
}

// Group returns the key-exchange group used for alg in suite.
func (c *Config) Group(suite registry.Suite, alg string) string {
	if suite == registry.SuiteSig {
		return c.DefaultKEM
	}

	return alg
}

// CertAlgorithm returns the signature algorithm whose certificate the
// server presents for alg in suite.
func (c *Config) CertAlgorithm(suite registry.Suite, alg string) string {
	if suite == registry.SuiteKEX {
		return c.DefaultSignature
	}

	return alg
}

// CertFiles returns the server certificate, server key and CA chain paths
// for a signature algorithm.
func (c *Config) CertFiles(sigAlg string) (cert, key, chain string) {
	serverDir := filepath.Join(c.PKIDir, "servercerts", sigAlg)

	return filepath.Join(serverDir, "server.crt"),
		filepath.Join(serverDir, "server.key"),
		filepath.Join(c.PKIDir, "cacerts", sigAlg, "CA.crt")
}

// ServerSpec returns the s_server parameters for alg on port.
func (c *Config) ServerSpec(suite registry.Suite, alg string, port int) harness.ServerSpec {
	cert, key, chain := c.CertFiles(c.CertAlgorithm(suite, alg))

	return harness.ServerSpec{
		CertFile:  cert,
		KeyFile:   key,
		ChainFile: chain,
		Group:     c.Group(suite, alg),
		Port:      port,
	}
}

// ClientSpec returns the s_time parameters for alg against host:port.
func (c *Config) ClientSpec(
	suite registry.Suite,
	alg, host string,
	port int,
	duration time.Duration,
) harness.ClientSpec {
	return harness.ClientSpec{
		Host:        host,
		Port:        port,
		Resource:    c.Resource,
		VerifyDepth: c.VerifyDepth,
		Duration:    duration,
		Groups:      c.Group(suite, alg),
	}
}

// ClientLogPath returns data/<alg>_<runID>_t_<slot>_it_<repeat>.log.
func (c *Config) ClientLogPath(alg, runID string, slot, repeat int) string {
	name := alg + "_" + runID + "_t_" + strconv.Itoa(slot) +
		"_it_" + strconv.Itoa(repeat) + ".log"

	return filepath.Join(c.DataDir, name)
}

// ServerLogPath returns logs/<alg>_p_<port>.log.
func (c *Config) ServerLogPath(alg string, port int) string {
	return filepath.Join(c.LogsDir, alg+"_p_"+strconv.Itoa(port)+".log")
}

// ResultsPath returns results/results_<runID>.csv.
func (c *Config) ResultsPath(runID string) string {
	return filepath.Join(c.ResultsDir, "results_"+runID+".csv")
}

// EnsureDirs creates the given directories if they do not exist.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return nil
}
