package items

import "testing"

func TestResolveCredential(t *testing.T) {
	tests := []struct {
		name      string
		secretKey string
		adminKey  string
		wantKind  credentialKind
		wantValue string
	}{
		{"neither", "", "", credNone, ""},
		{"secret only", "s3cret", "", credSecret, "s3cret"},
		{"admin only", "", "adm1n", credAdmin, "adm1n"},
		{"both present, admin wins", "s3cret", "adm1n", credAdmin, "adm1n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := ResolveCredential(tt.secretKey, tt.adminKey)
			if cred.kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", cred.kind, tt.wantKind)
			}
			if cred.value != tt.wantValue {
				t.Errorf("value = %q, want %q", cred.value, tt.wantValue)
			}
		})
	}
}
