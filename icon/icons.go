package icon

// Icon identifies a symbol.
type Icon int

const (
	Lua Icon = iota + 1
	Web
	BitTorrent
	Local
	Danmaku
	Idle
	Working
	Succeeded
	Failed
	Disabled
	Selected
	Play
	Pause
	Finished
	Warn
)

var icons = map[Icon]symbol{
	Lua:        {"🌙", "", "lua", "(ﾉ≧∀≦)ﾉ", "◈"},
	Web:        {"🌐", "", "web", "(・ω・)", "◇"},
	BitTorrent: {"🧲", "", "bt", "(｀・ω・´)", "◆"},
	Local:      {"💾", "", "local", "(´ω｀)", "■"},
	Danmaku:    {"💬", "", "dm", "(ﾟ∀ﾟ)", "▤"},
	Idle:       {"💤", "", "-", "(－_－) zzZ", "□"},
	Working:    {"⏳", "", "~", "(・_・;)", "▣"},
	Succeeded:  {"✅", "", "+", "(＾▽＾)", "▩"},
	Failed:     {"❌", "", "x", "(╥﹏╥)", "▨"},
	Disabled:   {"🚫", "", "/", "(￣ヘ￣)", "▢"},
	Selected:   {"👉", "", ">", "(☞ﾟ∀ﾟ)☞", "▶"},
	Play:       {"▶️", "", ">", "ヽ(°〇°)ﾉ", "▷"},
	Pause:      {"⏸️", "", "||", "(´-ω-`)", "▯"},
	Finished:   {"🏁", "", "#", "＼(＾▽＾)／", "▪"},
	Warn:       {"⚠️", "", "!", "(°ロ°)", "▲"},
}
