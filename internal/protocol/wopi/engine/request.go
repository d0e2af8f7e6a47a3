package engine

import (
	"io"

	"github.com/marmos91/dittowopi/pkg/discovery"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// Request carries the values of one WOPI request that the operations read.
// Header-derived fields are empty when the header was absent unless noted.
type Request struct {
	// FileID is the id from /wopi/files/{id}.
	FileID string

	// Authority is the host[:port] the WOPI client addressed.
	Authority string

	// Lock and OldLock are X-WOPI-Lock and X-WOPI-OldLock.
	Lock    string
	OldLock string

	// RequestedName is X-WOPI-RequestedName; nil when absent.
	RequestedName *string

	// RelativeTarget and SuggestedTarget are X-WOPI-RelativeTarget and
	// X-WOPI-SuggestedTarget; nil when absent.
	RelativeTarget  *string
	SuggestedTarget *string

	// MaxExpectedSize is X-WOPI-MaxExpectedSize; negative when absent.
	MaxExpectedSize int64

	// Body is the request body for PutFile, PutRelativeFile and PutUserInfo.
	Body []byte

	// UserID and UserName identify the caller, usually from the access token.
	UserID   string
	UserName string
}

// Call is a Request bound to its loaded file and the context the
// dispatcher resolved for it.
type Call struct {
	*Request

	File *metadata.FileRecord

	// Actions are the discovery actions for the file's extension, defaults
	// last.
	Actions []discovery.Action

	CloseURL    string
	HostViewURL string
	HostEditURL string
	EmbedURL    string
}

// Response is the outcome of a successful operation.
type Response struct {
	// Lock, when non-nil, is written to X-WOPI-Lock (GetLock always sets it).
	Lock *string

	// ItemVersion, when set, is written to X-WOPI-ItemVersion.
	ItemVersion string

	// JSON, when non-nil, is encoded as the response body.
	JSON any

	// Content, when non-nil, is streamed as the body and closed by the
	// caller. ContentLength is its size.
	Content       io.ReadCloser
	ContentLength int64
}
