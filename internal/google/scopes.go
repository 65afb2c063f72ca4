package google

// DefaultOAuthScopes are the scopes needed to create spreadsheets inside a
// Drive folder tree and write their values.
var DefaultOAuthScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}
