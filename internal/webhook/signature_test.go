package webhook

import (
	"strings"
	"testing"
)

func TestSignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"event":"message_received","data":{"from":"123"}}`)
	sig := GenerateSignature(payload, "top-secret")

	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature %q missing sha256= prefix", sig)
	}
	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature length = %d, want hex sha256 digest", len(sig))
	}
	if !VerifySignature(payload, sig, "top-secret") {
		t.Error("valid signature rejected")
	}
}

func TestSignatureRejectsTampering(t *testing.T) {
	payload := []byte(`{"event":"message_received"}`)
	sig := GenerateSignature(payload, "top-secret")

	if VerifySignature([]byte(`{"event":"message_sent"}`), sig, "top-secret") {
		t.Error("modified payload accepted")
	}
	if VerifySignature(payload, sig, "wrong-secret") {
		t.Error("wrong secret accepted")
	}

	// Flip one hex character of the digest.
	flipped := []byte(sig)
	if flipped[len(flipped)-1] == 'a' {
		flipped[len(flipped)-1] = 'b'
	} else {
		flipped[len(flipped)-1] = 'a'
	}
	if VerifySignature(payload, string(flipped), "top-secret") {
		t.Error("corrupted signature accepted")
	}
}

func TestSignatureIsDeterministic(t *testing.T) {
	payload := []byte("same bytes")
	if GenerateSignature(payload, "k") != GenerateSignature(payload, "k") {
		t.Error("same payload and secret produced different signatures")
	}
	if GenerateSignature(payload, "k1") == GenerateSignature(payload, "k2") {
		t.Error("different secrets produced the same signature")
	}
}
