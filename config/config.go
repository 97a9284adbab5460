package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Image     ImageConfig     `yaml:"image"`
	Generator GeneratorConfig `yaml:"generator"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type LLMConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ImageConfig 图像合成服务配置
// 该服务通过 URL 编码的提示词以 GET 方式返回原始图片字节
type ImageConfig struct {
	APIURL  string        `yaml:"api_url"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Timeout time.Duration `yaml:"timeout"`
}

// GeneratorConfig 书籍生成流水线配置
type GeneratorConfig struct {
	TotalChapters        int           `yaml:"total_chapters"`
	IllustrationInterval int           `yaml:"illustration_interval"` // 每隔 N 章配一张插图（按 0 基索引取模）
	MaxRetries           int           `yaml:"max_retries"`
	RetryInitialDelay    time.Duration `yaml:"retry_initial_delay"`
	ChapterPacingDelay   time.Duration `yaml:"chapter_pacing_delay"`
	ProsePacingDelay     time.Duration `yaml:"prose_pacing_delay"`
	SummaryPacingDelay   time.Duration `yaml:"summary_pacing_delay"`
	ScenePacingDelay     time.Duration `yaml:"scene_pacing_delay"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		LLM: LLMConfig{
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Image: ImageConfig{
			APIURL:  "https://image.pollinations.ai/prompt",
			Width:   1024,
			Height:  1024,
			Timeout: 2 * time.Minute,
		},
		Generator: GeneratorConfig{
			TotalChapters:        12,
			IllustrationInterval: 2,
			MaxRetries:           3,
			RetryInitialDelay:    2 * time.Second,
			ChapterPacingDelay:   time.Second,
			ProsePacingDelay:     3 * time.Second,
			SummaryPacingDelay:   2 * time.Second,
			ScenePacingDelay:     2 * time.Second,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if imageURL := os.Getenv("IMAGE_API_URL"); imageURL != "" {
		config.Image.APIURL = imageURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}

	normalize(config)
	return config
}

// normalize 纠正非法或缺失的配置项，保证流水线拿到可用的参数
func normalize(config *Config) {
	if config.Generator.TotalChapters <= 0 {
		config.Generator.TotalChapters = 12
	}
	if config.Generator.IllustrationInterval <= 0 {
		config.Generator.IllustrationInterval = 2
	}
	if config.Generator.MaxRetries <= 0 {
		config.Generator.MaxRetries = 3
	}
	if config.Generator.RetryInitialDelay <= 0 {
		config.Generator.RetryInitialDelay = 2 * time.Second
	}
	if config.Image.Width <= 0 {
		config.Image.Width = 1024
	}
	if config.Image.Height <= 0 {
		config.Image.Height = 1024
	}
	if config.Image.Timeout <= 0 {
		config.Image.Timeout = 2 * time.Minute
	}
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
