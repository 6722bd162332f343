// Package key lists every configuration key known to the application.
package key

// Logging.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI output.
const (
	IconsVariant    = "icons.variant"
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)

// Media fetching - per source worker bounds.
const (
	FetchTimeout      = "fetch.timeout"
	FetchSettleWindow = "fetch.settle_window"
	FetchSources      = "fetch.sources"
)

// Media selection policy. These are the defaults of the preference store.
const (
	SelectorAutoSelect           = "selector.auto_select"
	SelectorPreferredKind        = "selector.preferred_kind"
	SelectorPreferredSources     = "selector.preferred_sources"
	SelectorPreferredResolutions = "selector.preferred_resolutions"
)

// Danmaku.
const (
	DanmakuEnable    = "danmaku.enable"
	DanmakuTimeout   = "danmaku.timeout"
	DanmakuProviders = "danmaku.providers"
	DanmakuSelfID    = "danmaku.self_id"
	DanmakuOSD       = "danmaku.osd"
	DanmakuOSDLines  = "danmaku.osd_lines"
	DanmakuOSDHold   = "danmaku.osd_hold"
)

// Playback.
const (
	Player                     = "player.default"
	PlayerCompletionPercentage = "player.completion_percentage"
	PlayerRememberProgress     = "player.remember_progress"
	PlayerAutoSkipOpEd         = "player.auto_skip_op_ed"
	PlayerAutoNext             = "player.auto_next"
)

// Metadata.
const (
	MetadataFetchAnilist = "metadata.fetch_anilist"
)

// Metrics and network.
const (
	MetricsEnable    = "metrics.enable"
	MetricsAddress   = "metrics.address"
	NetworkRateLimit = "network.rate_limit"
)
