package items

// credentialKind enumerates what, if anything, a caller presented.
type credentialKind int

const (
	credNone credentialKind = iota
	credSecret
	credAdmin
)

// Credential is the caller's presented access token, resolved once per
// request so retrieval authorization is a single exhaustive switch rather
// than nested optional checks. An admin key wins when both are present.
type Credential struct {
	kind  credentialKind
	value string
}

// ResolveCredential builds a Credential from the raw query parameters.
func ResolveCredential(secretKey, adminKey string) Credential {
	switch {
	case adminKey != "":
		return Credential{kind: credAdmin, value: adminKey}
	case secretKey != "":
		return Credential{kind: credSecret, value: secretKey}
	default:
		return Credential{kind: credNone}
	}
}
