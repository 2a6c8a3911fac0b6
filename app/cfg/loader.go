package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Backend
	APIURL         string        `long:"api-url" env:"API_URL" default:"http://localhost:8000" description:"Base URL of the news backend API"`
	RequestTimeout time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"15s" description:"Timeout for every backend request"`
	UserAgent      string        `long:"user-agent" env:"USER_AGENT" default:"WHUT-Portal/1.0" description:"User agent string for backend requests"`

	// Portal server
	Port    string `long:"port" env:"PORT" default:"3000" description:"HTTP server port"`
	BaseUrl string `long:"base-url" env:"BASE_URL" description:"Public base URL of the portal (e.g., https://news.example.com)"`

	// Client state
	StatePath        string        `long:"state-path" env:"STATE_PATH" description:"SQLite file holding the session token (default: user config dir)"`
	NoPersist        bool          `long:"no-persist" env:"NO_PERSIST" description:"Keep the session token in memory only"`
	BootTimeout      time.Duration `long:"boot-timeout" env:"BOOT_TIMEOUT" default:"3s" description:"Timeout for validating a stored token at start-up"`
	CalendarInterval time.Duration `long:"calendar-interval" env:"CALENDAR_INTERVAL" default:"1h" description:"Refresh interval of the calendar summary"`

	// List view
	PageSize    int    `long:"page-size" env:"PAGE_SIZE" description:"News items per page (default: preferences file or 12)"`
	Preferences string `long:"preferences" env:"PREFERENCES" description:"Optional YAML preferences file"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"Asia/Shanghai" description:"Timezone of backend timestamps"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Command is a sub-command registered with Load.
type Command struct {
	Name  string
	Short string
	Long  string
	Data  flags.Commander
}

var globalCfg *Cfg

// Load reads the .env file, parses global options and the selected
// sub-command from args, publishes the configuration for Get and finally
// executes the sub-command. It returns nil, nil when help was requested.
func Load(args []string, commands ...Command) (*Cfg, error) {
	if err := loadEnvFile(cmp.Or(os.Getenv("ENV_FILE"), ".env")); err != nil {
		return nil, err
	}
	if os.Getenv("API_URL") == "" {
		if legacy := os.Getenv("NEXT_PUBLIC_API_URL"); legacy != "" {
			os.Setenv("API_URL", legacy)
		}
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	for _, c := range commands {
		if _, err := parser.AddCommand(c.Name, c.Short, c.Long, c.Data); err != nil {
			return nil, fmt.Errorf("failed to register command %s: %w", c.Name, err)
		}
	}

	var built *Cfg
	parser.CommandHandler = func(command flags.Commander, rest []string) error {
		cfg, err := build(&raw)
		if err != nil {
			return err
		}
		built = cfg
		globalCfg = cfg

		if command == nil {
			return nil
		}
		return command.Execute(rest)
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		if built != nil {
			return built, err
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return built, nil
}

func build(raw *rawCfg) (*Cfg, error) {
	prefs, err := LoadPreferences(raw.Preferences)
	if err != nil {
		return nil, err
	}

	statePath := raw.StatePath
	if statePath == "" {
		statePath = defaultStatePath()
	}

	pageSize := cmp.Or(raw.PageSize, prefs.PageSize, DefaultPageSize)
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
	}

	cfg := &Cfg{
		APIURL:           raw.APIURL,
		RequestTimeout:   raw.RequestTimeout,
		UserAgent:        raw.UserAgent,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		StatePath:        statePath,
		NoPersist:        raw.NoPersist,
		BootTimeout:      raw.BootTimeout,
		CalendarInterval: raw.CalendarInterval,
		PageSize:         pageSize,
		PaginationRadius: *prefs.PaginationRadius,
		FeaturedOnly:     prefs.FeaturedOnly,
		DefaultCategory:  prefs.DefaultCategory,
		PreferencesPath:  raw.Preferences,
		FeedFilters:      prefs.FeedFilters,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set publishes cfg for Get without parsing. Used by tests and embedders.
func Set(cfg *Cfg) {
	globalCfg = cfg
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "whut-portal", "state.db")
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
