package udefrag

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"

	"github.com/udefrag/core/internal/dbglog"
)

// SortKey is UD_SORTING (§6.2).
type SortKey int

const (
	SortPath SortKey = iota
	SortSize
	SortCTime
	SortMTime
	SortATime
)

// SortOrder is UD_SORTING_ORDER (§6.2).
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Options is the fully-resolved set of §6.2's job options.
type Options struct {
	InFilter  []string
	ExFilter  []string

	SizeLimit        uint64
	FragmentsLimit   uint64
	TimeLimit        time.Duration
	RefreshInterval  time.Duration
	DisableReports   bool
	DebugLevel       dbglog.Level
	DryRun           bool
	Sorting          SortKey
	SortingOrder     SortOrder
	LogFilePath      string

	// PreviewMatching forces the defragment driver to always use
	// WalkFragmentedFiles regardless of the fragmented/free-region ratio
	// (§4.7 step 2). Not UD_*-configurable: it's a programmatic override
	// for callers previewing a best-fit pass, set directly on Options
	// rather than through the environment.
	PreviewMatching bool
}

// defaultOptions mirrors options.c's "reset all options" + default
// refresh interval of 100ms.
func defaultOptions() Options {
	return Options{
		RefreshInterval: 100 * time.Millisecond,
	}
}

// tomlOptions is the optional udefrag.toml layer (§10, §12.2), grounded on
// dsmmcken-dh-cli's config.toml convention. Every field is optional; the
// environment always takes precedence over it.
type tomlOptions struct {
	InFilter        []string `toml:"in_filter,omitempty"`
	ExFilter        []string `toml:"ex_filter,omitempty"`
	SizeLimit       string   `toml:"size_limit,omitempty"`
	FragmentsLimit  *uint64  `toml:"fragments_limit,omitempty"`
	TimeLimit       string   `toml:"time_limit,omitempty"`
	RefreshInterval *int     `toml:"refresh_interval_ms,omitempty"`
	DisableReports  *bool    `toml:"disable_reports,omitempty"`
	DebugLevel      string   `toml:"debug_level,omitempty"`
	DryRun          *bool    `toml:"dry_run,omitempty"`
	Sorting         string   `toml:"sorting,omitempty"`
	SortingOrder    string   `toml:"sorting_order,omitempty"`
	LogFilePath     string   `toml:"log_file_path,omitempty"`
}

// LoadTomlDefaults reads an optional TOML defaults file. A missing file is
// not an error — it simply leaves Options at their built-in defaults.
func LoadTomlDefaults(path string) (Options, error) {
	opts := defaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, err
	}

	var t tomlOptions
	if err := toml.Unmarshal(data, &t); err != nil {
		return opts, err
	}

	applyToml(&opts, t)

	return opts, nil
}

func applyToml(opts *Options, t tomlOptions) {
	if len(t.InFilter) > 0 {
		opts.InFilter = t.InFilter
	}
	if len(t.ExFilter) > 0 {
		opts.ExFilter = t.ExFilter
	}
	if t.SizeLimit != "" {
		if n, err := humanize.ParseBytes(t.SizeLimit); err == nil {
			opts.SizeLimit = n
		}
	}
	if t.FragmentsLimit != nil {
		opts.FragmentsLimit = *t.FragmentsLimit
	}
	if t.TimeLimit != "" {
		if d, err := time.ParseDuration(t.TimeLimit); err == nil {
			opts.TimeLimit = d
		}
	}
	if t.RefreshInterval != nil {
		opts.RefreshInterval = time.Duration(*t.RefreshInterval) * time.Millisecond
	}
	if t.DisableReports != nil {
		opts.DisableReports = *t.DisableReports
	}
	if t.DryRun != nil {
		opts.DryRun = *t.DryRun
	}
	opts.DebugLevel = parseDebugLevel(t.DebugLevel, opts.DebugLevel)
	opts.Sorting = parseSortKey(t.Sorting, opts.Sorting)
	opts.SortingOrder = parseSortOrder(t.SortingOrder, opts.SortingOrder)
	if t.LogFilePath != "" {
		opts.LogFilePath = t.LogFilePath
	}
}

// LoadOptionsFromEnv reads the UD_* environment variables (§6.2),
// layering them on top of base (typically the result of LoadTomlDefaults).
// Mirrors options.c's get_options: read, parse, log every resolved value.
func LoadOptionsFromEnv(base Options) Options {
	opts := base

	if v, ok := os.LookupEnv("UD_IN_FILTER"); ok {
		opts.InFilter = splitFilterList(v)
	}
	if v, ok := os.LookupEnv("UD_EX_FILTER"); ok {
		opts.ExFilter = splitFilterList(v)
	}
	if v, ok := os.LookupEnv("UD_SIZELIMIT"); ok {
		if n, err := humanize.ParseBytes(v); err == nil {
			opts.SizeLimit = n
		} else {
			debugPrint("UD_SIZELIMIT=%q could not be parsed: %v", v, err)
		}
	}
	if v, ok := os.LookupEnv("UD_FRAGMENTS_THRESHOLD"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.FragmentsLimit = n
		}
	}
	if v, ok := os.LookupEnv("UD_TIME_LIMIT"); ok {
		if secs, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.TimeLimit = time.Duration(secs) * time.Second
		}
	}
	if v, ok := os.LookupEnv("UD_REFRESH_INTERVAL"); ok {
		if ms, err := strconv.Atoi(v); err == nil {
			opts.RefreshInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("UD_DISABLE_REPORTS"); ok {
		opts.DisableReports = v == "1"
	}
	if v, ok := os.LookupEnv("UD_DBGPRINT_LEVEL"); ok {
		opts.DebugLevel = parseDebugLevel(v, opts.DebugLevel)
	}
	if v, ok := os.LookupEnv("UD_DRY_RUN"); ok {
		if v == "1" {
			debugPrint("UD_DRY_RUN=1: no actual data moves will be performed on disk")
			opts.DryRun = true
		}
	}
	if v, ok := os.LookupEnv("UD_SORTING"); ok {
		opts.Sorting = parseSortKey(v, opts.Sorting)
	}
	if v, ok := os.LookupEnv("UD_SORTING_ORDER"); ok {
		opts.SortingOrder = parseSortOrder(v, opts.SortingOrder)
	}
	if v, ok := os.LookupEnv("UD_LOG_FILE_PATH"); ok {
		opts.LogFilePath = v
	}

	opts.logSummary()

	return opts
}

func splitFilterList(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func parseDebugLevel(v string, fallback dbglog.Level) dbglog.Level {
	switch strings.ToUpper(v) {
	case "DETAILED":
		return dbglog.Detailed
	case "PARANOID":
		return dbglog.Paranoid
	case "":
		return fallback
	default:
		return fallback
	}
}

func parseSortKey(v string, fallback SortKey) SortKey {
	switch strings.ToLower(v) {
	case "path":
		return SortPath
	case "size":
		return SortSize
	case "c_time":
		return SortCTime
	case "m_time":
		return SortMTime
	case "a_time":
		return SortATime
	default:
		return fallback
	}
}

func parseSortOrder(v string, fallback SortOrder) SortOrder {
	switch strings.ToLower(v) {
	case "asc":
		return SortAscending
	case "desc":
		return SortDescending
	default:
		return fallback
	}
}

// logSummary echoes the resolved filters, size and fragment thresholds, time
// limit, refresh interval, report toggle and dry-run flag once at DETAILED
// level (§12.2),
// mirroring options.c's winx_dbg_print_header/DebugPrint dump.
func (o Options) logSummary() {
	detailedPrint("ultradefrag job options")
	for _, p := range o.InFilter {
		detailedPrint("  + in_filter %s", p)
	}
	for _, p := range o.ExFilter {
		detailedPrint("  - ex_filter %s", p)
	}
	detailedPrint("file size threshold = %s", humanize.Bytes(o.SizeLimit))
	detailedPrint("file fragments threshold = %d", o.FragmentsLimit)
	detailedPrint("time limit = %s", o.TimeLimit)
	detailedPrint("progress refresh interval = %s", o.RefreshInterval)
	if o.DisableReports {
		detailedPrint("reports disabled")
	} else {
		detailedPrint("reports enabled")
	}
	if o.DryRun {
		detailedPrint("dry run: no actual moves will be issued")
	}
}
