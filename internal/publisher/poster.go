package publisher

import "context"

// PostRequest is the payload handed to the external poster collaborator
// (spec §6.2). The core never retries on its own; duplicate prevention
// within one publishing run is handled by Publisher's content-hash set.
type PostRequest struct {
	Title      string
	Content    string
	Status     string
	Categories []string
}

// PostResponse is the collaborator's reply.
type PostResponse struct {
	ID   string
	Link string
}

// Poster is the opaque external publication channel consumed by the
// Publisher (spec §6.2). The WordPress REST client itself is out of
// scope (spec §1); this interface is the entire contract the core
// depends on.
type Poster interface {
	CreatePost(ctx context.Context, req PostRequest) (PostResponse, error)
}
