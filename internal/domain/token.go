package domain

import "time"

// RefreshTokenRecord is the server-side state behind a refresh token cookie.
type RefreshTokenRecord struct {
	TokenID    string    `json:"tokenId"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	DeviceInfo string    `json:"deviceInfo,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
}

// ClientInfo describes where a login or refresh came from.
type ClientInfo struct {
	DeviceInfo string
	IPAddress  string
}
