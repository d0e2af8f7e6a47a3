package wopi

import (
	"net/http"
	"strings"
)

const (
	wopiPrefix   = "/wopi/"
	filesPrefix  = "files/"
	contentsPath = "/contents"
)

// Classify maps a request onto an operation kind and the target file id.
//
// The path is matched case-insensitively and anything before "/wopi/" is
// ignored, so the host can be mounted under a base path. The returned id is
// lower-cased. Folder routes, unknown overrides and unknown paths are None.
func Classify(path, method, override string, hasOldLock bool) (Kind, string) {
	p := strings.ToLower(path)

	i := strings.Index(p, wopiPrefix)
	if i < 0 {
		return None, ""
	}
	p = p[i+len(wopiPrefix):]

	if !strings.HasPrefix(p, filesPrefix) {
		return None, ""
	}
	raw := p[len(filesPrefix):]

	if id, ok := strings.CutSuffix(raw, contentsPath); ok {
		if !validID(id) {
			return None, ""
		}
		switch method {
		case http.MethodGet:
			return GetFile, id
		case http.MethodPost:
			return PutFile, id
		}
		return None, id
	}

	if !validID(raw) {
		return None, ""
	}

	switch method {
	case http.MethodGet:
		return CheckFileInfo, raw
	case http.MethodPost:
		return classifyOverride(override, hasOldLock), raw
	}
	return None, raw
}

func classifyOverride(override string, hasOldLock bool) Kind {
	switch strings.ToUpper(strings.TrimSpace(override)) {
	case "LOCK":
		if hasOldLock {
			return UnlockAndRelock
		}
		return Lock
	case "GET_LOCK":
		return GetLock
	case "REFRESH_LOCK":
		return RefreshLock
	case "UNLOCK":
		return Unlock
	case "PUT_RELATIVE":
		return PutRelativeFile
	case "RENAME_FILE":
		return RenameFile
	case "PUT_USER_INFO":
		return PutUserInfo
	}
	return None
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}
