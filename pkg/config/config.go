package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath 未指定 --config 时读取的配置文件
const DefaultPath = "configs/config.yaml"

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "PUBMED_FEED_CONFIG"

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	PubMed      PubMedConfig      `yaml:"pubmed"`
	Interests   []string          `yaml:"interests"`
	DB          DBConfig          `yaml:"db"`
	Reports     ReportsConfig     `yaml:"reports"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Server      ServerConfig      `yaml:"server"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// PubMedConfig E-utilities 相关配置
type PubMedConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Email      string        `yaml:"email"`
	APIKey     string        `yaml:"api_key"`
	SearchDays int           `yaml:"search_days"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
	RPS        float64       `yaml:"rps"`
}

// DBConfig 数据库相关配置，driver 为 sqlite 或 postgres
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	DSN      string `yaml:"dsn"`
}

// ReportsConfig 报告文件输出配置
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Workers int `yaml:"workers"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// ScheduleConfig 定时运行配置，Interval 为 0 表示不启用
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default 内置默认配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		PubMed: PubMedConfig{
			BaseURL:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			SearchDays: 7,
			MaxResults: 100,
			Timeout:    30 * time.Second,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "data/pubmed.db",
			Port:   5432,
		},
		Reports: ReportsConfig{Dir: "data/reports"},
		Log:     LogConfig{Level: "info"},
		Concurrency: ConcurrencyConfig{
			QPS:     1,
			RPM:     60,
			Workers: 1,
		},
		Server: ServerConfig{
			Addr:    ":8000",
			Timeout: 300 * time.Second,
		},
	}
}

// LoadConfig 从指定路径加载配置，缺省项使用默认值，最后应用环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = ResolvePath("")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
		merge(cfg, &fileCfg)
	case errors.Is(err, os.ErrNotExist):
		// 没有配置文件时完全依赖默认值和环境变量
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath flag 优先，其次环境变量，最后默认路径
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.PubMed.SearchDays < 1 || c.PubMed.SearchDays > 365 {
		return fmt.Errorf("pubmed.search_days 需在 1-365 之间，当前为 %d", c.PubMed.SearchDays)
	}
	if c.PubMed.MaxResults < 1 || c.PubMed.MaxResults > 100 {
		return fmt.Errorf("pubmed.max_results 需在 1-100 之间，当前为 %d", c.PubMed.MaxResults)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("不支持的数据库类型: %q", c.DB.Driver)
	}
	if c.Concurrency.Workers < 1 {
		return fmt.Errorf("concurrency.workers 至少为 1")
	}
	return nil
}

// ConnString 返回数据库连接串，sqlite 为文件路径
func (d DBConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Password, d.Name)
	}
	return d.Path
}

func merge(dst, src *Config) {
	if src.LLM.BaseURL != "" {
		dst.LLM.BaseURL = src.LLM.BaseURL
	}
	if src.LLM.APIKey != "" {
		dst.LLM.APIKey = src.LLM.APIKey
	}
	if src.LLM.Model != "" {
		dst.LLM.Model = src.LLM.Model
	}
	if src.LLM.Timeout > 0 {
		dst.LLM.Timeout = src.LLM.Timeout
	}

	if src.PubMed.BaseURL != "" {
		dst.PubMed.BaseURL = src.PubMed.BaseURL
	}
	if src.PubMed.Email != "" {
		dst.PubMed.Email = src.PubMed.Email
	}
	if src.PubMed.APIKey != "" {
		dst.PubMed.APIKey = src.PubMed.APIKey
	}
	if src.PubMed.SearchDays != 0 {
		dst.PubMed.SearchDays = src.PubMed.SearchDays
	}
	if src.PubMed.MaxResults != 0 {
		dst.PubMed.MaxResults = src.PubMed.MaxResults
	}
	if src.PubMed.Timeout > 0 {
		dst.PubMed.Timeout = src.PubMed.Timeout
	}
	if src.PubMed.RPS > 0 {
		dst.PubMed.RPS = src.PubMed.RPS
	}

	if len(src.Interests) > 0 {
		dst.Interests = src.Interests
	}

	if src.DB.Driver != "" {
		dst.DB.Driver = src.DB.Driver
	}
	if src.DB.Path != "" {
		dst.DB.Path = src.DB.Path
	}
	if src.DB.Host != "" {
		dst.DB.Host = src.DB.Host
	}
	if src.DB.Port != 0 {
		dst.DB.Port = src.DB.Port
	}
	if src.DB.User != "" {
		dst.DB.User = src.DB.User
	}
	if src.DB.Password != "" {
		dst.DB.Password = src.DB.Password
	}
	if src.DB.Name != "" {
		dst.DB.Name = src.DB.Name
	}
	if src.DB.DSN != "" {
		dst.DB.DSN = src.DB.DSN
	}

	if src.Reports.Dir != "" {
		dst.Reports.Dir = src.Reports.Dir
	}

	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}

	if src.Concurrency.QPS > 0 {
		dst.Concurrency.QPS = src.Concurrency.QPS
	}
	if src.Concurrency.RPM > 0 {
		dst.Concurrency.RPM = src.Concurrency.RPM
	}
	if src.Concurrency.Workers != 0 {
		dst.Concurrency.Workers = src.Concurrency.Workers
	}

	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.Timeout > 0 {
		dst.Server.Timeout = src.Server.Timeout
	}

	if src.Schedule.Interval > 0 {
		dst.Schedule.Interval = src.Schedule.Interval
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("NCBI_API_KEY")); v != "" {
		cfg.PubMed.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DB.DSN = v
	}
}
