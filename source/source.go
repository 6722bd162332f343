// Package source defines the media model shared by fetching, selection and playback,
// and the capability every media source must provide.
package source

import "context"

// MediaSource is a provider of candidate streams for an episode.
//
// Query must honor ctx cancellation. Errors are returned, never panicked;
// the fetch session classifies them and records them as the source's Failed state.
type MediaSource interface {
	// InstanceID identifies the source within a fetch session.
	InstanceID() string

	// Kind is the kind of every media this source yields.
	Kind() Kind

	// Query returns the media this source offers for the request.
	Query(ctx context.Context, request *FetchRequest) ([]*Media, error)
}
