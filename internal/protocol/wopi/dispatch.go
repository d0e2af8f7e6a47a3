package wopi

import (
	"context"

	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
)

// ============================================================================
// Operation Dispatch Table
// ============================================================================

// operationHandler runs one operation against a prepared call.
type operationHandler func(e *engine.Engine, ctx context.Context, c *engine.Call) (*engine.Response, error)

// operationInfo contains metadata about an operation for dispatch.
type operationInfo struct {
	// Handler is the engine method serving the operation.
	Handler operationHandler

	// ReadsBody is set for operations that consume the request body.
	ReadsBody bool
}

// dispatchTable maps operation kinds to their handlers. Kinds missing from
// the table (None) are answered with 501.
var dispatchTable = map[Kind]*operationInfo{
	CheckFileInfo:   {Handler: (*engine.Engine).CheckFileInfo},
	GetFile:         {Handler: (*engine.Engine).GetFile},
	Lock:            {Handler: (*engine.Engine).Lock},
	GetLock:         {Handler: (*engine.Engine).GetLock},
	RefreshLock:     {Handler: (*engine.Engine).RefreshLock},
	Unlock:          {Handler: (*engine.Engine).Unlock},
	UnlockAndRelock: {Handler: (*engine.Engine).UnlockAndRelock},
	PutFile:         {Handler: (*engine.Engine).PutFile, ReadsBody: true},
	PutRelativeFile: {Handler: (*engine.Engine).PutRelativeFile, ReadsBody: true},
	RenameFile:      {Handler: (*engine.Engine).RenameFile},
	PutUserInfo:     {Handler: (*engine.Engine).PutUserInfo, ReadsBody: true},
}
