package service

// IdentitySource records how a display name was resolved, mostly for
// tests and debug logs.
type IdentitySource int

const (
	// SourceMapped means the raw id resolved through the display-name map.
	SourceMapped IdentitySource = iota
	// SourceOpenID means the raw open_id itself is displayed.
	SourceOpenID
	// SourceUserID means the raw user_id itself is displayed.
	SourceUserID
	// SourceUnknown means neither id was populated.
	SourceUnknown
)

// ResolveIdentity turns a record's two optional id fields into a
// display name: open_id wins over user_id, the display-name map wins
// over the raw id, and a record with neither id reads as 未知用户.
// Every caller that displays a person goes through here.
func ResolveIdentity(openID, userID string, names map[string]string) (string, IdentitySource) {
	id := openID
	source := SourceOpenID
	if id == "" {
		id = userID
		source = SourceUserID
	}
	if id == "" || id == unknownIdentity {
		return fallbackUserName, SourceUnknown
	}
	if name, ok := names[id]; ok && name != "" {
		return name, SourceMapped
	}
	return id, source
}
