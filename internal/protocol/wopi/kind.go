package wopi

import "strconv"

// Kind is a classified WOPI operation.
type Kind int

const (
	None Kind = iota
	CheckFileInfo
	GetFile
	Lock
	GetLock
	RefreshLock
	Unlock
	UnlockAndRelock
	PutFile
	PutRelativeFile
	RenameFile
	PutUserInfo
)

var kindNames = [...]string{
	None:            "None",
	CheckFileInfo:   "CheckFileInfo",
	GetFile:         "GetFile",
	Lock:            "Lock",
	GetLock:         "GetLock",
	RefreshLock:     "RefreshLock",
	Unlock:          "Unlock",
	UnlockAndRelock: "UnlockAndRelock",
	PutFile:         "PutFile",
	PutRelativeFile: "PutRelativeFile",
	RenameFile:      "RenameFile",
	PutUserInfo:     "PutUserInfo",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}
