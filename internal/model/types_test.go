package model

import "testing"

func TestSignatureInfoIs404(t *testing.T) {
	t.Parallel()

	empty := ""
	path := "/missing"
	exc := "System.NullReferenceException"

	tests := []struct {
		name string
		sig  SignatureInfo
		want bool
	}{
		{name: "no keys", sig: SignatureInfo{}, want: false},
		{name: "exception signature", sig: SignatureInfo{ExceptionType: &exc}, want: false},
		{name: "path key present", sig: SignatureInfo{Path: &path}, want: true},
		// Key presence decides, not the value.
		{name: "empty path value", sig: SignatureInfo{Path: &empty}, want: true},
	}
	for _, tt := range tests {
		if got := tt.sig.Is404(); got != tt.want {
			t.Fatalf("%s: Is404 = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUserMemberOf(t *testing.T) {
	t.Parallel()

	u := &User{OrganizationIDs: []string{"org-1", "org-2"}}
	if !u.MemberOf("org-2") {
		t.Fatal("member not recognized")
	}
	if u.MemberOf("org-3") {
		t.Fatal("non-member accepted")
	}
	if (&User{}).MemberOf("org-1") {
		t.Fatal("user with no organizations accepted")
	}
}
