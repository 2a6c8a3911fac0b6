package cfg

import "time"

type Cfg struct {
	// Backend
	APIURL         string
	RequestTimeout time.Duration
	UserAgent      string

	// Portal server
	Port    string
	BaseUrl string

	// Client state
	StatePath        string
	NoPersist        bool
	BootTimeout      time.Duration
	CalendarInterval time.Duration

	// List view, resolved from flags and the preferences file
	PageSize         int
	PaginationRadius int
	FeaturedOnly     bool
	DefaultCategory  string
	PreferencesPath  string
	FeedFilters      []FeedFilter

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// Preferences is the optional YAML file tuning the list view.
type Preferences struct {
	PageSize         int          `yaml:"page_size"`
	PaginationRadius *int         `yaml:"pagination_radius"`
	FeaturedOnly     bool         `yaml:"featured_only"`
	DefaultCategory  string       `yaml:"default_category"`
	FeedFilters      []FeedFilter `yaml:"feed_filters"`
}

// FeedFilter drops RSS items whose field contains any of Excludes or, when
// Includes is set, none of Includes. Matching is case-insensitive.
type FeedFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
