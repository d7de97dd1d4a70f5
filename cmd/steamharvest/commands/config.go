package commands

import (
	"fmt"
	"os"
	"time"

	"steamharvest/lib/configutil"
	"steamharvest/lib/harvest"
	"steamharvest/lib/serviceutil"
	"steamharvest/lib/steam"

	"github.com/joho/godotenv"
)

// Config is the effective tuning for a harvesting run, defaults already
// applied.
type Config struct {
	Currency      string
	Language      string
	SleepSeconds  float64
	Retries       int
	Autosave      int
	Enrich        bool
	RetryDeferred bool
	Outfile       string
	KeyFile       string
}

// fileConfig is the optional config.json5 shape. Booleans are pointers so
// an omitted key keeps its default instead of silently becoming false.
type fileConfig struct {
	Currency     string  `json:"currency"`
	Language     string  `json:"language"`
	SleepSeconds float64 `json:"sleep_seconds"`
	// Retries after the first attempt; 0 retries until the service recovers.
	Retries       *int   `json:"retries"`
	Autosave      int    `json:"autosave"`
	Enrich        *bool  `json:"enrich"`
	RetryDeferred *bool  `json:"retry_deferred"`
	Outfile       string `json:"outfile"`
	KeyFile       string `json:"key_file"`
}

func loadConfig() Config {
	cfg := Config{
		Currency:     "us",
		Language:     "en",
		SleepSeconds: 1.5,
		Retries:      4,
		Autosave:     harvest.DefaultAutosave,
		Enrich:       true,
		KeyFile:      "steam.env",
	}

	fileCfg, err := configutil.ReadConfig[fileConfig]("config.json5")
	if os.IsNotExist(err) {
		return cfg
	}
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	if fileCfg.Currency != "" {
		cfg.Currency = fileCfg.Currency
	}
	if fileCfg.Language != "" {
		cfg.Language = fileCfg.Language
	}
	if fileCfg.SleepSeconds > 0 {
		cfg.SleepSeconds = fileCfg.SleepSeconds
	}
	if fileCfg.Retries != nil {
		cfg.Retries = *fileCfg.Retries
	}
	if fileCfg.Autosave > 0 {
		cfg.Autosave = fileCfg.Autosave
	}
	if fileCfg.Enrich != nil {
		cfg.Enrich = *fileCfg.Enrich
	}
	if fileCfg.RetryDeferred != nil {
		cfg.RetryDeferred = *fileCfg.RetryDeferred
	}
	if fileCfg.Outfile != "" {
		cfg.Outfile = fileCfg.Outfile
	}
	if fileCfg.KeyFile != "" {
		cfg.KeyFile = fileCfg.KeyFile
	}
	return cfg
}

func (c Config) paths(outfileFlag string) harvest.Paths {
	paths := harvest.DefaultPaths()
	if c.Outfile != "" {
		paths.Dataset = c.Outfile
	}
	if outfileFlag != "" {
		paths.Dataset = outfileFlag
	}
	return paths
}

func (c Config) clientOptions() steam.ClientOptions {
	return steam.ClientOptions{
		Retries:  c.Retries,
		Currency: c.Currency,
		Language: c.Language,
	}
}

func (c Config) harvestConfig() harvest.Config {
	return harvest.Config{
		Sleep:        time.Duration(c.SleepSeconds * float64(time.Second)),
		Autosave:     c.Autosave,
		SkipDeferred: !c.RetryDeferred,
		Enrich:       c.Enrich,
	}
}

// apiKey reads the catalog-listing credential from a key=value file.
// Missing credentials are fatal because the remote-listing path cannot run
// without one.
func (c Config) apiKey() string {
	env, err := godotenv.Read(c.KeyFile)
	if err != nil {
		serviceutil.Fatal("failed to read API key file", fmt.Errorf("%s: %w", c.KeyFile, err))
	}
	key := env["STEAM_API_KEY"]
	if key == "" {
		serviceutil.Fatal("missing credential", fmt.Errorf("no STEAM_API_KEY in %s", c.KeyFile))
	}
	return key
}
