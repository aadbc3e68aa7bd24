package form

import "testing"

func TestLogin_Valid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		f    Login
		want bool
	}{
		{Login{"a@b.com", "secret1"}, true},
		{Login{"ab.com", "secret1"}, false},
		{Login{"", "secret1"}, false},
		{Login{"a@b.com", "12345"}, false},
		{Login{"a@b.com", ""}, false},
		{Login{"a@b.com", "123456"}, true},
	}
	for i, tc := range cases {
		if got := tc.f.Valid(); got != tc.want {
			t.Fatalf("case %d %+v: Valid=%v want %v", i, tc.f, got, tc.want)
		}
	}
}

func TestRegistration_Valid(t *testing.T) {
	t.Parallel()
	ok := Registration{Email: "a@b.com", FullName: "Ada Lovelace", Password: "secret1", ConfirmPassword: "secret1"}
	if !ok.Valid() {
		t.Fatalf("want valid: %+v", ok)
	}

	noAt := ok
	noAt.Email = "a.b.com"
	mismatch := ok
	mismatch.ConfirmPassword = "secret2"
	short := ok
	short.Password, short.ConfirmPassword = "12345", "12345"
	noName := ok
	noName.FullName = ""

	for name, f := range map[string]Registration{"noAt": noAt, "mismatch": mismatch, "short": short, "noName": noName} {
		if f.Valid() {
			t.Fatalf("%s: want invalid", name)
		}
	}
}

// Any email without "@" invalidates both forms regardless of the other fields.
func TestEmailWithoutAt_AlwaysInvalid(t *testing.T) {
	t.Parallel()
	emails := []string{"", "plain", "a.b.c", "user(at)example.com", "   "}
	for _, e := range emails {
		if (Login{Email: e, Password: "longenough"}).Valid() {
			t.Fatalf("login valid for %q", e)
		}
		r := Registration{Email: e, FullName: "X", Password: "longenough", ConfirmPassword: "longenough"}
		if r.Valid() {
			t.Fatalf("registration valid for %q", e)
		}
		if ValidEmail(e) {
			t.Fatalf("ValidEmail(%q)", e)
		}
	}
}

func TestRegistration_PasswordsMatch(t *testing.T) {
	t.Parallel()
	if _, shown := (Registration{Password: "abc"}).PasswordsMatch(); shown {
		t.Fatalf("indicator must stay hidden until both fields are filled")
	}
	if m, shown := (Registration{Password: "abc", ConfirmPassword: "abc"}).PasswordsMatch(); !m || !shown {
		t.Fatalf("want match")
	}
	if m, shown := (Registration{Password: "abc", ConfirmPassword: "abd"}).PasswordsMatch(); m || !shown {
		t.Fatalf("want mismatch")
	}
}
