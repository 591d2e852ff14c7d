package pin

import "testing"

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		value, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !Valid(value) {
			t.Fatalf("expected a %d digit pin, got %q", Length, value)
		}
	}
}

func TestHashVerify(t *testing.T) {
	encoded, err := Hash("004217")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("004217", encoded) {
		t.Fatalf("expected pin to verify")
	}
	if Verify("004218", encoded) {
		t.Fatalf("expected wrong pin to fail")
	}
	if Verify("004217", "$argon2id$v=19$m=bad$x$y") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"123456":  true,
		"12345":   false,
		"12a456":  false,
		"1234567": false,
	}
	for value, want := range cases {
		if got := Valid(value); got != want {
			t.Fatalf("Valid(%q) = %v, want %v", value, got, want)
		}
	}
}
