package pii

import "testing"

func TestRedactIDDeterministic(t *testing.T) {
	hashed := RedactID("user-123")
	if len(hashed) != 64 {
		t.Fatalf("expected length 64, got %d", len(hashed))
	}
	if hashed != RedactID("user-123") {
		t.Fatalf("hash is not deterministic")
	}
	if RedactID("") != "" {
		t.Fatalf("empty input should redact to empty string")
	}
}

func TestRedactRow(t *testing.T) {
	row := map[string]interface{}{
		"email":   "a@b.com",
		"user_id": "u-1",
		"action":  "view_face",
	}
	out := RedactRow(row)
	if _, ok := out["email"]; ok {
		t.Fatalf("email should be fully redacted (dropped)")
	}
	if out["user_id"] == "u-1" {
		t.Fatalf("user_id should be hashed, not passed through")
	}
	if out["action"] != "view_face" {
		t.Fatalf("unlisted fields should pass through unchanged")
	}
}
