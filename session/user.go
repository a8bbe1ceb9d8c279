package session

// User is the profile record for the signed-in account. The session layer
// treats it as opaque beyond existence-checking; it is replaced wholesale on
// login or refresh and cleared on logout.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
	UserType   string `json:"userType,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	ClaimedBy  string `json:"claimedBy,omitempty"`
	CreatedBy  string `json:"createdBy,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Credentials is the payload of a successful authentication exchange.
// RefreshToken may be empty when the server manages the refresh credential
// via an HTTP-only cookie.
type Credentials struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
