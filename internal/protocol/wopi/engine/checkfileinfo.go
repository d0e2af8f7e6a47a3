package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittowopi/pkg/discovery"
)

// CheckFileInfoResponse is the CheckFileInfo body.
type CheckFileInfoResponse struct {
	BaseFileName     string `json:"BaseFileName"`
	OwnerID          string `json:"OwnerId"`
	Size             int64  `json:"Size"`
	Version          string `json:"Version"`
	UserID           string `json:"UserId"`
	UserFriendlyName string `json:"UserFriendlyName"`
	UserInfo         string `json:"UserInfo,omitempty"`
	LastModifiedTime string `json:"LastModifiedTime"`

	CloseURL            string `json:"CloseUrl"`
	HostEditURL         string `json:"HostEditUrl"`
	HostViewURL         string `json:"HostViewUrl"`
	HostEmbeddedViewURL string `json:"HostEmbeddedViewUrl"`
	FileVersionURL      string `json:"FileVersionUrl"`
	DownloadURL         string `json:"DownloadUrl"`

	BreadcrumbBrandName    string `json:"BreadcrumbBrandName"`
	BreadcrumbBrandURL     string `json:"BreadcrumbBrandUrl"`
	AllowErrorReportPrompt bool   `json:"AllowErrorReportPrompt"`

	Actions []discovery.Action `json:"Actions"`

	SupportsCoauth               bool `json:"SupportsCoauth"`
	SupportsExtendedLockLength   bool `json:"SupportsExtendedLockLength"`
	SupportsFileCreation         bool `json:"SupportsFileCreation"`
	SupportsFolders              bool `json:"SupportsFolders"`
	SupportsGetLock              bool `json:"SupportsGetLock"`
	SupportsLocks                bool `json:"SupportsLocks"`
	SupportsRename               bool `json:"SupportsRename"`
	SupportsScenarioLinks        bool `json:"SupportsScenarioLinks"`
	SupportsSecureStore          bool `json:"SupportsSecureStore"`
	SupportsUpdate               bool `json:"SupportsUpdate"`
	SupportsUserInfo             bool `json:"SupportsUserInfo"`
	LicenseCheckForEditIsEnabled bool `json:"LicenseCheckForEditIsEnabled"`
	ReadOnly                     bool `json:"ReadOnly"`
	RestrictedWebViewOnly        bool `json:"RestrictedWebViewOnly"`
	UserCanAttend                bool `json:"UserCanAttend"`
	UserCanNotWriteRelative      bool `json:"UserCanNotWriteRelative"`
	UserCanPresent               bool `json:"UserCanPresent"`
	UserCanRename                bool `json:"UserCanRename"`
	UserCanWrite                 bool `json:"UserCanWrite"`
	WebEditingDisabled           bool `json:"WebEditingDisabled"`
}

// CheckFileInfo describes the file, the caller and the host's capabilities.
func (e *Engine) CheckFileInfo(ctx context.Context, c *Call) (*Response, error) {
	f := c.File

	info := &CheckFileInfoResponse{
		BaseFileName:     f.BaseFileName,
		OwnerID:          f.OwnerID,
		Size:             f.Size,
		Version:          itemVersion(f),
		UserID:           e.userID(c),
		UserFriendlyName: e.userName(c),
		UserInfo:         f.UserInfo,

		CloseURL:            c.CloseURL,
		HostEditURL:         c.HostEditURL,
		HostViewURL:         c.HostViewURL,
		HostEmbeddedViewURL: c.EmbedURL,

		BreadcrumbBrandName:    e.cfg.BreadcrumbBrandName,
		BreadcrumbBrandURL:     e.cfg.BreadcrumbBrandURL,
		AllowErrorReportPrompt: e.cfg.AllowErrorReportPrompt,

		Actions: c.Actions,

		SupportsGetLock:              true,
		SupportsLocks:                true,
		SupportsRename:               true,
		SupportsUpdate:               true,
		LicenseCheckForEditIsEnabled: true,
		UserCanAttend:                true,
		UserCanPresent:               true,
		UserCanRename:                true,
		UserCanWrite:                 true,
	}

	if !f.LastModifiedTime.IsZero() {
		info.LastModifiedTime = f.LastModifiedTime.UTC().Format(time.RFC3339Nano)
	}
	if info.Actions == nil {
		info.Actions = []discovery.Action{}
	}

	return &Response{JSON: info, ItemVersion: info.Version}, nil
}
