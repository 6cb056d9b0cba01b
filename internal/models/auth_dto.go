package models

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type SignUpResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type LogoutResponse struct {
	Detail string `json:"detail"`
}

// UserMetadata is the request fingerprint a refresh token is bound to.
type UserMetadata struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}
