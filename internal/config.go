package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	MaxConcurrent  int           `env:"MAX_CONCURRENT,required=true"`
	MaxRetries     int           `env:"MAX_RETRIES,required=true"`
	AttemptTimeout time.Duration `env:"ATTEMPT_TIMEOUT,required=true"`
	BackoffBase    time.Duration `env:"BACKOFF_BASE,required=true"`
	StaggerDelta   time.Duration `env:"STAGGER_DELTA,default=10ms"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=15s"`
	EmitTimeout       time.Duration `env:"EMIT_TIMEOUT,default=5s"`

	GeneratorBaseURL string  `env:"GENERATOR_BASE_URL,required=true"`
	GeneratorAPIKey  string  `env:"GENERATOR_API_KEY"`
	GeneratorModel   string  `env:"GENERATOR_MODEL,required=true"`
	GeneratorTemp    float64 `env:"GENERATOR_TEMPERATURE,default=0.7"`

	ParticipantsFile string `env:"PARTICIPANTS_FILE,required=true"`
	SharedContext    string `env:"SHARED_CONTEXT"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	SearchLimit    int    `env:"SEARCH_LIMIT,default=50"`

	CensoredWordsFile string `env:"CENSORED_WORDS_FILE"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`

	StoreGCInterval time.Duration `env:"STORE_GC_INTERVAL,default=5m"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=5s"`

	LogLevel  string `env:"LOG_LEVEL,required=true"`
	DebugPort int    `env:"DEBUG_PORT"`
}

// MaxAttempts is the total generation attempt budget: the initial try
// plus MAX_RETRIES retries (MAX_RETRIES=2 means 3 attempts).
func (c Config) MaxAttempts() int {
	return c.MaxRetries + 1
}

// CharacterRune enforces that the replacement is exactly one rune so
// censored spans keep their original length.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
