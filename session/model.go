package session

// Session is the server-side record behind a browser session cookie.
//
// Only the fields needed to describe the signed-in principal are kept; the
// record is never used to mint renewal credentials.
type Session struct {
	SchemaVersion uint8
	SessionID     string

	UserID      string
	Identifier  string
	DisplayName string
	Role        string

	CreatedAt int64
	ExpiresAt int64
}
