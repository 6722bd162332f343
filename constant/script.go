package constant

// Global functions a media source script must define.
const (
	QueryMediaFn = "QueryMedia"
)

// Global functions a danmaku provider script must define.
const (
	SearchSubjectsFn  = "SearchSubjects"
	SubjectEpisodesFn = "SubjectEpisodes"
	EpisodeDanmakuFn  = "EpisodeDanmaku"
)

// Optional: lets a danmaku provider accept comments.
const PostDanmakuFn = "PostDanmaku"

// Script header tags.
const (
	ScriptTagName = "@name"
	ScriptTagKind = "@kind"
)
