package auth

import "testing"

func TestSessionManagerIssueAndValidate(t *testing.T) {
	key, err := GenerateSigningKeyPEM()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPEM() error: %v", err)
	}

	mgr, err := NewSessionManager(key)
	if err != nil {
		t.Fatalf("NewSessionManager() error: %v", err)
	}

	token, err := mgr.IssueToken("sess-123")
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	sid, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if sid != "sess-123" {
		t.Errorf("ValidateToken() = %q, want %q", sid, "sess-123")
	}
}

func TestSessionManagerRejectsForeignSignature(t *testing.T) {
	keyA, err := GenerateSigningKeyPEM()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPEM() error: %v", err)
	}
	keyB, err := GenerateSigningKeyPEM()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPEM() error: %v", err)
	}

	mgrA, err := NewSessionManager(keyA)
	if err != nil {
		t.Fatalf("NewSessionManager() error: %v", err)
	}
	mgrB, err := NewSessionManager(keyB)
	if err != nil {
		t.Fatalf("NewSessionManager() error: %v", err)
	}

	token, err := mgrA.IssueToken("sess-123")
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	if _, err := mgrB.ValidateToken(token); err == nil {
		t.Error("ValidateToken() with the wrong key should fail")
	}
}

func TestSessionManagerRejectsGarbage(t *testing.T) {
	key, err := GenerateSigningKeyPEM()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPEM() error: %v", err)
	}
	mgr, err := NewSessionManager(key)
	if err != nil {
		t.Fatalf("NewSessionManager() error: %v", err)
	}

	if _, err := mgr.ValidateToken("not-a-jwt"); err == nil {
		t.Error("ValidateToken() on garbage input should fail")
	}
}
