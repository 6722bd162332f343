package constant

// MediaSourceTemplate scaffolds a Lua media source. Executed with text/template.
const MediaSourceTemplate = `{{ $divider := repeat "-" (plus (max (len .URL) (len .Name) (len .Author)) 12) }}{{ $divider }}
-- @name    {{ .Name }}
-- @kind    {{ .Kind }}
-- @url     {{ .URL }}
-- @author  {{ .Author }}
-- @license MIT
{{ $divider }}


---@alias request { subject_id: string, episode_id: string, name: string, names: string[], episode_sort: number, episode_ep: number, episode_name: string }
---@alias media { id: string, title: string, url: string, resolution: string|nil, subtitles: string[]|nil, seeds: number|nil, size: number|nil, headers: table|nil }


----- IMPORTS -----
--- END IMPORTS ---



----- MAIN -----

--- Finds the media of one episode.
-- @param request request What to look for
-- @return media[] Playable media
function {{ .QueryFn }}(request)
	return {}
end

--- END MAIN ---

-- ex: ts=4 sw=4 et filetype=lua
`

// DanmakuProviderTemplate scaffolds a Lua danmaku provider.
const DanmakuProviderTemplate = `{{ $divider := repeat "-" (plus (max (len .URL) (len .Name) (len .Author)) 12) }}{{ $divider }}
-- @name    {{ .Name }}
-- @url     {{ .URL }}
-- @author  {{ .Author }}
-- @license MIT
{{ $divider }}


---@alias subject { id: string, title: string, aliases: string[]|nil }
---@alias episode { id: string, sort: string, title: string }
---@alias danmaku { id: string, sender: string, text: string, time: number, location: string|nil, color: number|nil }


----- MAIN -----

--- Searches the provider's catalog.
-- @param query string
-- @return subject[]
function {{ .SearchSubjectsFn }}(query)
	return {}
end

--- Lists the episodes of a subject.
-- @param subject_id string
-- @return episode[]
function {{ .SubjectEpisodesFn }}(subject_id)
	return {}
end

--- Fetches the comments of one episode.
-- @param subject subject
-- @param episode episode
-- @return danmaku[]
function {{ .EpisodeDanmakuFn }}(subject, episode)
	return {}
end

--- Optional. Posts a comment and returns it as stored.
-- @param episode { anilist_id: string, names: string[], episode_id: string, sort: number, name: string }
-- @param comment danmaku
-- @return danmaku
-- function {{ .PostDanmakuFn }}(episode, comment)
-- 	return comment
-- end

--- END MAIN ---

-- ex: ts=4 sw=4 et filetype=lua
`
