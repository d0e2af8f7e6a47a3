package metadata

import (
	"strings"
	"time"
)

// FileRecord is the persisted state of a document served over WOPI.
//
// LockValue and LockExpires are either both set or both zero. The lock is
// observably released once the clock passes LockExpires, even before the
// record is rewritten; callers use LockState to read it.
type FileRecord struct {
	// ID is the resource identifier used in /wopi/files/{id}.
	ID string `json:"id"`

	// Container references where the content store keeps the bytes
	// (bucket prefix, directory, ...). Copied to files created from this one.
	Container string `json:"container"`

	// BaseFileName is the display name including extension.
	BaseFileName string `json:"base_file_name"`

	// Size is the content length in bytes.
	Size int64 `json:"size"`

	// Version increments on every content write.
	Version int64 `json:"version"`

	LockValue   string    `json:"lock_value,omitempty"`
	LockExpires time.Time `json:"lock_expires,omitempty"`

	LastModifiedTime time.Time `json:"last_modified_time"`
	LastModifiedUser string    `json:"last_modified_user,omitempty"`

	// OwnerID identifies the document owner.
	OwnerID string `json:"owner_id"`

	// UserInfo is the opaque blob stored by PUT_USER_INFO.
	UserInfo string `json:"user_info,omitempty"`

	// Revision is managed by the store. UpdateFile only succeeds when the
	// caller's Revision matches the stored one and then increments it.
	Revision uint64 `json:"revision"`
}

// Clone returns a copy of the record.
func (f *FileRecord) Clone() *FileRecord {
	c := *f
	return &c
}

// LockState returns the effective lock at now. An expired lock reports
// locked=false with expired=true.
func (f *FileRecord) LockState(now time.Time) (value string, locked bool, expired bool) {
	if f.LockValue == "" {
		return "", false, false
	}
	if now.After(f.LockExpires) {
		return "", false, true
	}
	return f.LockValue, true, false
}

// SetLock locks the record with value until expires.
func (f *FileRecord) SetLock(value string, expires time.Time) {
	f.LockValue = value
	f.LockExpires = expires
}

// ClearLock removes any lock.
func (f *FileRecord) ClearLock() {
	f.LockValue = ""
	f.LockExpires = time.Time{}
}

// Extension returns the lower-cased substring after the last "." of the
// file name, or the whole lower-cased name when it has no ".".
func (f *FileRecord) Extension() string {
	return Extension(f.BaseFileName)
}

// Extension applies FileRecord.Extension's rule to an arbitrary name.
func Extension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return strings.ToLower(name)
}

// Validate checks the record invariants stores enforce on write.
func (f *FileRecord) Validate() error {
	if f.ID == "" {
		return &StoreError{Code: ErrInvalidArgument, Message: "file id is required"}
	}
	if (f.LockValue == "") != f.LockExpires.IsZero() {
		return &StoreError{
			Code:    ErrInvalidArgument,
			Message: "lock value and lock expiry must be set together",
			ID:      f.ID,
		}
	}
	if f.Size < 0 {
		return &StoreError{Code: ErrInvalidArgument, Message: "negative size", ID: f.ID}
	}
	return nil
}
