/*
PURPOSE:
  Defines the configuration structure and loading logic for crowdcount-bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of endpoint, image list, trials, concurrency and
    the energy telemetry source.
  - Keep deployment secrets (gateway URL, login script, S3 keys) in .env.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs .env loading plus environment overrides (OPENFAAS_URL, ...).
  - Invalid trial counts or concurrency must fail before any request is sent.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli
  - Dependencies: gopkg.in/yaml.v3, github.com/joho/godotenv

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default config file falls back to defaults.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Precedence: defaults < file < .env / environment < CLI flags.

USAGE:
  cfg, err := config.Load("crowdcount_bench.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Default().

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"crowdcount_bench.yaml", "bench.yaml"}

// DefaultImages is the test image set. Names encode persons and faces
// present, e.g. 3p2f = three persons, two faces.
var DefaultImages = []string{
	"0p0f_0.jpg", "0p0f_1.jpg", "0p0f_2.jpg", "0p0f_3.jpg", "0p0f_4.jpg",
	"1p1f_0.jpg", "1p1f_1.jpg", "1p1f_2.jpg", "1p1f_3.jpg", "1p1f_4.jpg",
	"2p0f_0.jpg", "2p1f_0.jpg", "2p2f_0.jpg", "2p2f_1.jpg", "2p2f_2.jpg",
	"3p0f_0.jpg", "3p2f_0.jpg", "3p3f_0.jpg", "3p3f_1.jpg", "3p3f_2.jpg",
	"4p1f_0.jpg", "4p3f_0.jpg", "4p3f_1.jpg", "4p3f_2.jpg", "4p4f_0.jpg",
	"5p0f_0.jpg", "5p1f_0.jpg", "6p6f_0.jpg", "8p7f_0.jpg",
}

// Energy source kinds.
const (
	SourceSerial = "serial"
	SourceRAPL   = "rapl"
	SourceNone   = "none"
)

// Config represents the full configuration for crowdcount-bench.
type Config struct {
	Endpoint string   `yaml:"endpoint"`
	Function string   `yaml:"function"`
	ImageDir string   `yaml:"image_dir"`
	Images   []string `yaml:"images"`

	Trials         int           `yaml:"trials"`
	Concurrency    int           `yaml:"concurrency"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Pause between images.
	Pause time.Duration `yaml:"pause"`

	LoginScript string `yaml:"login_script"`
	LoginSudo   bool   `yaml:"login_sudo"`

	Energy EnergyConfig `yaml:"energy"`

	OutputDir   string `yaml:"output_dir"`
	CSVFile     string `yaml:"csv_file"`
	SummaryFile string `yaml:"summary_file"`
	JSONFile    string `yaml:"json_file"`
	XLSXFile    string `yaml:"xlsx_file"` // empty disables the workbook

	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	Archive ArchiveConfig `yaml:"archive"`
	Sheets  SheetsConfig  `yaml:"sheets"`
}

// EnergyConfig selects the telemetry source.
type EnergyConfig struct {
	Source      string `yaml:"source"`
	SerialPort  string `yaml:"serial_port"`
	BaudRate    int    `yaml:"baud_rate"`
	CounterPath string `yaml:"counter_path"`
}

// ArchiveConfig describes the S3-compatible bucket results are uploaded to.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Prefix    string `yaml:"prefix"`
}

// SheetsConfig points at a shared Google spreadsheet that receives the same
// blocks as the workbook. An empty SpreadsheetID disables it.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"` // service-account key
	Sheet           string `yaml:"sheet"`            // empty means the first tab
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Endpoint:       "http://127.0.0.1:8080",
		Function:       "crowdcount",
		ImageDir:       "images",
		Images:         slices.Clone(DefaultImages),
		Trials:         5,
		Concurrency:    1,
		RequestTimeout: 300 * time.Second,
		Pause:          time.Second,
		LoginSudo:      true,
		Energy: EnergyConfig{
			Source:     SourceSerial,
			SerialPort: "/dev/ttyUSB0",
			BaudRate:   115200,
		},
		OutputDir:   ".",
		CSVFile:     "trials.csv",
		SummaryFile: "summary.csv",
		JSONFile:    "runs.jsonl",
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
		Archive: ArchiveConfig{
			Prefix: "crowdcount-bench",
		},
	}
}

// Load reads configuration from a file, then applies .env and environment
// overrides.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultFiles in order.
// If no file is found, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := LoadDotenv(".env"); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotenv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from environment variables.
func ApplyEnv(cfg *Config) error {
	str := map[string]*string{
		"OPENFAAS_URL":    &cfg.Endpoint,
		"FUNCTION_NAME":   &cfg.Function,
		"IMAGE_DIRECTORY": &cfg.ImageDir,
		"LOGIN_SCRIPT":    &cfg.LoginScript,
		"XLSX_FILE":       &cfg.XLSXFile,
		"SERIAL_PORT":     &cfg.Energy.SerialPort,
		"RAPL_PATH":       &cfg.Energy.CounterPath,
		"ENERGY_SOURCE":   &cfg.Energy.Source,
		"S3_ENDPOINT":     &cfg.Archive.Endpoint,
		"S3_BUCKET":       &cfg.Archive.Bucket,
		"S3_ACCESS_KEY":   &cfg.Archive.AccessKey,
		"S3_SECRET_KEY":   &cfg.Archive.SecretKey,

		"GOOGLE_SHEET_KEY":   &cfg.Sheets.SpreadsheetID,
		"GOOGLE_CREDENTIALS": &cfg.Sheets.CredentialsFile,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TRIALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRIALS %q: %w", v, err)
		}
		cfg.Trials = n
	}
	if v := os.Getenv("S3_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid S3_SECURE %q: %w", v, err)
		}
		cfg.Archive.Secure = b
	}
	// a bucket from the environment turns the archive on
	if os.Getenv("S3_BUCKET") != "" && cfg.Archive.Endpoint != "" {
		cfg.Archive.Enabled = true
	}
	return nil
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint must be set"))
	}
	if c.Trials < 1 {
		errs = append(errs, fmt.Errorf("trials must be >= 1, got %d", c.Trials))
	}
	if c.Concurrency != 1 && c.Concurrency != 2 {
		errs = append(errs, fmt.Errorf("concurrency must be 1 or 2, got %d", c.Concurrency))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.Pause < 0 {
		errs = append(errs, fmt.Errorf("pause must not be negative, got %s", c.Pause))
	}
	switch c.Energy.Source {
	case SourceSerial:
		if c.Energy.SerialPort == "" {
			errs = append(errs, errors.New("energy.serial_port must be set for the serial source"))
		}
	case SourceRAPL, SourceNone:
	default:
		errs = append(errs, fmt.Errorf("unknown energy source %q", c.Energy.Source))
	}
	if c.CSVFile != "" && c.SummaryFile == "" {
		errs = append(errs, errors.New("summary_file must be set when csv_file is set"))
	}
	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsFile == "" {
		errs = append(errs, errors.New("sheets.credentials_file must be set when sheets.spreadsheet_id is set"))
	}
	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		errs = append(errs, errors.New("archive needs endpoint and bucket"))
	}
	return errors.Join(errs...)
}

// ImagePaths resolves the image list against ImageDir.
func (c *Config) ImagePaths() []string {
	paths := make([]string, 0, len(c.Images))
	for _, img := range c.Images {
		if filepath.IsAbs(img) {
			paths = append(paths, img)
			continue
		}
		paths = append(paths, filepath.Join(c.ImageDir, img))
	}
	return paths
}

// OutputPath joins name to OutputDir; empty names stay empty.
func (c *Config) OutputPath(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
