package models

const (
	MwUserIDKey = "userID"
	MwTokenKey  = "token"

	RefreshCookieName = "refresh_token"
)
