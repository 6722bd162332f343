package metadata

import "fmt"

var mediaSubquery = `
id
idMal
title {
	romaji
	english
	native
}
synonyms
status
episodes
duration
nextAiringEpisode {
	episode
}
`

var searchByNameQuery = fmt.Sprintf(`
query ($query: String) {
	Page (page: 1, perPage: 30) {
		media (search: $query, type: ANIME) {
			%s
		}
	}
}
`, mediaSubquery)

var searchByIDQuery = fmt.Sprintf(`
query ($id: Int) {
	Media (id: $id, type: ANIME) {
		%s
	}
}`, mediaSubquery)

var relationsQuery = `
query ($id: Int) {
	Media (id: $id, type: ANIME) {
		relations {
			edges {
				relationType
				node {
					id
					type
					title {
						romaji
						english
						native
					}
				}
			}
		}
	}
}`
