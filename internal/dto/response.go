package dto

import "Zyncrate/model"

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Success      bool   `json:"success"`
	Key          string `json:"key"`
	Link         string `json:"link"`
	ExpiresAt    int64  `json:"expires_at"`
	MaxDownloads int    `json:"max_downloads"`
	OneTime      bool   `json:"one_time"`
	Locked       bool   `json:"locked"`
	Message      string `json:"message"`
}

// FileInfoResponse describes a live file without secrets.
type FileInfoResponse struct {
	Key           string `json:"key"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
	DownloadCount int    `json:"download_count"`
	MaxDownloads  *int   `json:"max_downloads"`
	OneTime       bool   `json:"one_time"`
	Locked        bool   `json:"locked"`
	Expired       bool   `json:"expired"`
}

// NewFileInfoResponse converts a file row; unlimited files report a null
// ceiling.
func NewFileInfoResponse(f *model.File, nowMs int64) FileInfoResponse {
	resp := FileInfoResponse{
		Key:           f.Key,
		FileName:      f.FileName,
		FileSize:      f.FileSize,
		MimeType:      f.MimeType,
		CreatedAt:     f.CreatedAt,
		ExpiresAt:     f.ExpiresAt,
		DownloadCount: f.DownloadCount,
		OneTime:       f.OneTime,
		Locked:        f.Locked,
		Expired:       f.ExpiredAt(nowMs),
	}
	if !f.Unlimited() {
		limit := f.MaxDownloads
		resp.MaxDownloads = &limit
	}
	return resp
}

// DownloadInfoResponse is the summary shown on the download page.
type DownloadInfoResponse struct {
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
	DownloadCount int    `json:"download_count"`
	MaxDownloads  *int   `json:"max_downloads"`
}

// TokenResponse is returned by login, register and guest session.
type TokenResponse struct {
	Token     string `json:"token"`
	Kind      string `json:"kind"`
	UserID    uint64 `json:"user_id,omitempty"`
	GuestID   uint64 `json:"guest_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Plan      string `json:"plan,omitempty"`
	ExpiresIn int64  `json:"expires_in"`
}

// KeyVerifyResponse answers a lock check.
type KeyVerifyResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
