package config

import (
	"encoding/xml"
	"io"
	"os"
	"sync"
)

var (
	cfg  *APIConfig
	once sync.Once
)

// APIConfig represents the root element.
type APIConfig struct {
	XMLName     xml.Name      `xml:"API"`
	RequestDump bool          `xml:"REQUEST_DUMP,attr"`
	Debug       bool          `xml:"DEBUG,attr"`
	Context     ContextConfig `xml:"CONTEXT"`
	DB          DBConfig      `xml:"DB"`
	LLM         LLMConfig     `xml:"LLM"`
	Engine      EngineConfig  `xml:"ENGINE"`
}

// ContextConfig holds basic server settings.
type ContextConfig struct {
	Port     int    `xml:"PORT"`
	Host     string `xml:"HOST"`
	TimeZone string `xml:"TIME_ZONE"`
	LogDir   string `xml:"LOG_DIR"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Initialize bool         `xml:"INITIALIZE"`
	Host       string       `xml:"HOST"`
	Port       int          `xml:"PORT"`
	Name       string       `xml:"NAME"`
	SSLMode    string       `xml:"SSL_MODE"`
	Username   string       `xml:"USERNAME"`
	Password   string       `xml:"PASSWORD"`
	Pool       DBPoolConfig `xml:"POOL"`
}

// DBPoolConfig holds database connection pooling settings.
type DBPoolConfig struct {
	MaxOpenConns    int `xml:"MAX_OPEN_CONNS"`
	MaxIdleConns    int `xml:"MAX_IDLE_CONNS"`
	ConnMaxLifetime int `xml:"CONN_MAX_LIFETIME"`
}

// LLMConfig holds generation endpoint settings.
type LLMConfig struct {
	URL            string `xml:"URL"`
	Model          string `xml:"MODEL"`
	TimeoutSeconds int    `xml:"TIMEOUT_SECONDS"`
	RatePerMinute  int    `xml:"RATE_PER_MINUTE"`
}

// EngineConfig holds the adaptive-learning tuning knobs.
type EngineConfig struct {
	ActivePoolMinimum    int     `xml:"ACTIVE_POOL_MINIMUM"`
	DeployBatchSize      int     `xml:"DEPLOY_BATCH_SIZE"`
	GenerationCount      int     `xml:"GENERATION_COUNT"`
	CooldownHours        int     `xml:"COOLDOWN_HOURS"`
	ConceptSelectLimit   int     `xml:"CONCEPT_SELECT_LIMIT"`
	ConfidenceSmoothing  float64 `xml:"CONFIDENCE_SMOOTHING"`
	QuizBasePoints       int     `xml:"QUIZ_BASE_POINTS"`
	SweepConcurrency     int     `xml:"SWEEP_CONCURRENCY"`
	StorageRetryAttempts int     `xml:"STORAGE_RETRY_ATTEMPTS"`
}

// LoadConfig loads and parses the XML configuration from the given file.
func LoadConfig(xmlPath string) (*APIConfig, error) {
	once.Do(func() {
		f, err := os.Open(xmlPath)
		if err != nil {
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return
		}

		var newCfg APIConfig
		if err := xml.Unmarshal(data, &newCfg); err != nil {
			return
		}

		newCfg.applyDefaults()
		cfg = &newCfg
	})

	if cfg == nil {
		return nil, os.ErrInvalid
	}
	return cfg, nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *APIConfig {
	return cfg
}

func (c *APIConfig) applyDefaults() {
	if c.Engine.ActivePoolMinimum == 0 {
		c.Engine.ActivePoolMinimum = 5
	}
	if c.Engine.DeployBatchSize == 0 {
		c.Engine.DeployBatchSize = 5
	}
	if c.Engine.GenerationCount == 0 {
		c.Engine.GenerationCount = 6
	}
	if c.Engine.CooldownHours == 0 {
		c.Engine.CooldownHours = 24
	}
	if c.Engine.ConceptSelectLimit == 0 {
		c.Engine.ConceptSelectLimit = 10
	}
	if c.Engine.ConfidenceSmoothing == 0 {
		c.Engine.ConfidenceSmoothing = 0.3
	}
	if c.Engine.QuizBasePoints == 0 {
		c.Engine.QuizBasePoints = 50
	}
	if c.Engine.SweepConcurrency == 0 {
		c.Engine.SweepConcurrency = 4
	}
	if c.Engine.StorageRetryAttempts == 0 {
		c.Engine.StorageRetryAttempts = 3
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.RatePerMinute == 0 {
		c.LLM.RatePerMinute = 10
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "mistral"
	}
}
