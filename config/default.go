package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/style"
	"github.com/muesli/reflow/wordwrap"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field is a registered configuration key with its default value.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty renders the field for `config info`.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable that overrides the field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Aniplay + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.TypeName(),
	})
}

// TypeName is the user facing name of the field's value type.
func (f *Field) TypeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case bool:
		return "bool"
	case time.Duration:
		return "duration"
	case []string:
		return "[]string"
	default:
		return "unknown"
	}
}

// Parse converts raw CLI values into the field's value type.
func (f *Field) Parse(raw []string) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no value for %s", f.Key)
	}

	switch f.Value.(type) {
	case string:
		return raw[0], nil
	case int:
		return strconv.Atoi(raw[0])
	case bool:
		return strconv.ParseBool(raw[0])
	case time.Duration:
		return time.ParseDuration(raw[0])
	case []string:
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", f.Value, f.Key)
	}
}

// Default holds every registered field by key.
var Default = make(map[string]Field)

// EnvExposed lists the keys bound to environment variables.
var EnvExposed []string

func register(k string, v any, desc string) {
	if _, exists := Default[k]; exists {
		panic("duplicate config key: " + k)
	}

	Default[k] = Field{Key: k, Value: v, Description: desc}
	EnvExposed = append(EnvExposed, k)
}

func init() {
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")

	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Check for a newer release when showing help or the version")

	register(key.FetchTimeout, 20*time.Second, "How long a single media source may stay in the working state before it fails with a timeout")
	register(key.FetchSettleWindow, 2*time.Second, "How long automatic selection waits for more results after each update before it commits")
	register(key.FetchSources, []string{}, "Media source scripts to query. Empty means every installed media source.\nType \"aniplay sources\" to show available sources")

	register(key.SelectorAutoSelect, true, "Select a media automatically once results settle")
	register(key.SelectorPreferredKind, "", "Preferred media kind: web, bt or local. Empty means no preference")
	register(key.SelectorPreferredSources, []string{}, "Media sources ranked first, in order")
	register(key.SelectorPreferredResolutions, []string{"1080P", "720P", "2160P", "480P"}, "Resolutions ranked first, in order")

	register(key.DanmakuEnable, true, "Load danmaku for the playing episode")
	register(key.DanmakuTimeout, 15*time.Second, "How long a single danmaku provider may stay in the working state before it fails with a timeout")
	register(key.DanmakuProviders, []string{}, "Danmaku provider scripts to query. Empty means every installed danmaku provider")
	register(key.DanmakuSelfID, "", "Sender id of your own account, used to highlight danmaku you posted")
	register(key.DanmakuOSD, true, "Show danmaku as on-screen text when the player supports it")
	register(key.DanmakuOSDLines, 3, "Most danmaku shown on screen at once")
	register(key.DanmakuOSDHold, 3*time.Second, "How long on-screen danmaku stay visible")

	register(key.Player, "mpv", "Media player to use")
	register(key.PlayerCompletionPercentage, 80, "Percentage required to mark an episode as watched (1-100)")
	register(key.PlayerRememberProgress, true, "Resume episodes from the saved position")
	register(key.PlayerAutoSkipOpEd, false, "Skip openings and endings using aniskip")
	register(key.PlayerAutoNext, true, "Play the next episode once the current one finishes, if it is known to be aired")

	register(key.MetadataFetchAnilist, true, "Fetch subject metadata from Anilist\nIt will also cache the results to not spam the API")

	register(key.MetricsEnable, false, "Expose prometheus metrics while playing")
	register(key.MetricsAddress, "127.0.0.1:9464", "Listen address of the metrics endpoint")
	register(key.NetworkRateLimit, 5, "Maximum requests per second sent to a single host by scripted providers")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"wrap":     func(s string) string { return wordwrap.String(s, 80) },
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint (wrap .Description) }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
