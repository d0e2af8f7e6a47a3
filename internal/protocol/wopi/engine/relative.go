package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/discovery"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// PutRelativeResponse is the PutRelativeFile body.
type PutRelativeResponse struct {
	Name        string `json:"Name"`
	URL         string `json:"Url"`
	HostViewURL string `json:"HostViewUrl,omitempty"`
	HostEditURL string `json:"HostEditUrl,omitempty"`
}

// RenameResponse is the RenameFile body.
type RenameResponse struct {
	Name string `json:"Name"`
}

// PutRelativeFile stores the body as a new file next to the source: same
// owner and container, a fresh id, version 1. The response carries a WOPI
// URL with a token for the new file.
func (e *Engine) PutRelativeFile(ctx context.Context, c *Call) (*Response, error) {
	src := c.File

	name, err := relativeName(src.BaseFileName, c.RelativeTarget, c.SuggestedTarget)
	if err != nil {
		return nil, err
	}

	created := &metadata.FileRecord{
		ID:               uuid.NewString(),
		Container:        src.Container,
		BaseFileName:     name,
		Size:             int64(len(c.Body)),
		Version:          1,
		OwnerID:          src.OwnerID,
		LastModifiedTime: e.clock.Now(),
		LastModifiedUser: e.userID(c),
	}

	id := contentID(created)
	if err := e.content.WriteContent(ctx, id, c.Body); err != nil {
		return nil, e.storeError(err)
	}

	if err := e.files.CreateFile(ctx, created); err != nil {
		if derr := e.content.Delete(ctx, id); derr != nil {
			logger.Warn("PUTRELATIVE: orphaned content %s: %v", id, derr)
		}
		return nil, e.storeError(err)
	}

	token, _, err := e.tokens.Issue(auth.Grant{
		UserID:    created.OwnerID,
		FileID:    created.ID,
		Container: created.Container,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token for %s: %w", created.ID, err)
	}

	resp := &PutRelativeResponse{
		Name: name,
		URL: fmt.Sprintf("https://%s/wopi/files/%s?access_token=%s",
			c.Authority, created.ID, url.QueryEscape(token)),
	}

	actions := e.resolveActions(ctx, name)
	if view, ok := discovery.Find(actions, "view"); ok {
		resp.HostViewURL = e.actions.ActionURL(view, created.ID, c.Authority)
	}
	if edit, ok := discovery.Find(actions, "edit"); ok {
		resp.HostEditURL = e.actions.ActionURL(edit, created.ID, c.Authority)
	}

	logger.Info("PUTRELATIVE: source=%s new=%s name=%q size=%d", src.ID, created.ID, name, created.Size)
	return &Response{JSON: resp}, nil
}

// relativeName picks the new file's name. Exactly one target header must be
// present. A suggested target starting with "." only replaces the source
// extension.
func relativeName(source string, relative, suggested *string) (string, error) {
	var name string
	switch {
	case relative != nil && suggested != nil:
		return "", &RequestError{Status: http.StatusNotImplemented, Reason: reasonBothTargets}
	case relative != nil:
		name = *relative
	case suggested != nil:
		name = *suggested
		if strings.HasPrefix(name, ".") {
			name = stem(source) + name
		}
	default:
		return "", badRequest(reasonNoTarget)
	}

	if strings.TrimSpace(name) == "" {
		return "", badRequest("PutRelativeFile target name is empty")
	}
	return name, nil
}

// stem strips the last extension from name.
func stem(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// RenameFile renames the file and locks it with the request's value. A
// requested name without an extension keeps the current one.
func (e *Engine) RenameFile(ctx context.Context, c *Call) (*Response, error) {
	if c.RequestedName == nil {
		return nil, badRequest(reasonNoRequestName)
	}
	requested := *c.RequestedName
	if strings.TrimSpace(requested) == "" {
		return nil, badRequest("X-WOPI-RequestedName header is empty")
	}

	name := renamedName(c.File.BaseFileName, requested)

	_, err := e.mutate(ctx, "RenameFile", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		current, locked, _ := f.LockState(now)
		if locked && current != c.Lock {
			return false, &ConflictError{Lock: current, Reason: "File locked by " + current}
		}

		f.BaseFileName = name
		switch {
		case c.Lock != "":
			f.SetLock(c.Lock, now.Add(e.lockDuration))
		case !locked:
			f.ClearLock()
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("RENAME: file=%s name=%q", c.File.ID, name)
	return &Response{JSON: &RenameResponse{Name: requested}}, nil
}

func renamedName(current, requested string) string {
	if strings.Contains(requested, ".") || !strings.Contains(current, ".") {
		return requested
	}
	return requested + "." + current[strings.LastIndex(current, ".")+1:]
}

// PutUserInfo stores the body as the file's user info blob.
func (e *Engine) PutUserInfo(ctx context.Context, c *Call) (*Response, error) {
	info := string(c.Body)
	_, err := e.mutate(ctx, "PutUserInfo", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		f.UserInfo = info
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Response{}, nil
}
