package scram

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

// fakeServer emulates just enough of the SCRAM-SHA-256 server side (RFC
// 5802/7677) to exercise Client's full exchange without a real PostgreSQL
// backend: it knows the password out of band and computes the same
// SaltedPassword/ServerKey the client derives.
type fakeServer struct {
	salt       []byte
	iterations int
	password   string
}

func (s *fakeServer) firstMessage(clientNonce string) (serverMessage, serverNonce string) {
	serverNonce = clientNonce + "fakeservernonce"
	serverMessage = "r=" + serverNonce + ",s=" + base64.StdEncoding.EncodeToString(s.salt) + ",i=" + itoa(s.iterations)
	return serverMessage, serverNonce
}

func (s *fakeServer) finalMessage(clientFirstBare, serverFirst, clientFinalWithoutProof string) string {
	saltedPassword := pbkdf2.Key([]byte(s.password), s.salt, s.iterations, sha256.Size, sha256.New)
	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	authMessage := clientFirstBare + "," + serverFirst + "," + clientFinalWithoutProof
	sig := hmacSHA256(serverKey, []byte(authMessage))
	return "v=" + base64.StdEncoding.EncodeToString(sig)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestScramFullExchangeSucceeds(t *testing.T) {
	client, err := NewClient("alice", "correct horse")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	first := client.FirstMessage()
	if !strings.HasPrefix(first, "n,,n=alice,r=") {
		t.Fatalf("unexpected first message shape: %q", first)
	}
	clientNonce := strings.TrimPrefix(first, "n,,n=alice,r=")

	server := &fakeServer{salt: []byte("0123456789abcdef"), iterations: 4096, password: "correct horse"}
	serverFirst, _ := server.firstMessage(clientNonce)

	if err := client.ReceiveServerFirst(serverFirst); err != nil {
		t.Fatalf("ReceiveServerFirst failed: %v", err)
	}

	final := client.FinalMessage()
	if !strings.Contains(final, ",p=") {
		t.Fatalf("final message missing proof: %q", final)
	}
	withoutProof := final[:strings.Index(final, ",p=")]

	clientFirstBare := "n=alice,r=" + clientNonce
	serverFinal := server.finalMessage(clientFirstBare, serverFirst, withoutProof)

	if err := client.VerifyServerFinal(serverFinal); err != nil {
		t.Fatalf("VerifyServerFinal failed: %v", err)
	}
}

func TestScramRejectsTamperedServerSignature(t *testing.T) {
	client, _ := NewClient("alice", "correct horse")
	first := client.FirstMessage()
	clientNonce := strings.TrimPrefix(first, "n,,n=alice,r=")

	server := &fakeServer{salt: []byte("0123456789abcdef"), iterations: 4096, password: "correct horse"}
	serverFirst, _ := server.firstMessage(clientNonce)
	if err := client.ReceiveServerFirst(serverFirst); err != nil {
		t.Fatalf("ReceiveServerFirst failed: %v", err)
	}
	client.FinalMessage()

	tampered := "v=" + base64.StdEncoding.EncodeToString([]byte("not the right signature!"))
	if err := client.VerifyServerFinal(tampered); err == nil {
		t.Fatal("expected VerifyServerFinal to reject a tampered signature")
	}
}

func TestScramRejectsServerError(t *testing.T) {
	client, _ := NewClient("alice", "pw")
	if err := client.VerifyServerFinal("e=invalid-proof"); err == nil {
		t.Fatal("expected an error when the server reports e=")
	}
}

func TestScramRejectsMalformedServerFirst(t *testing.T) {
	client, _ := NewClient("alice", "pw")
	if err := client.ReceiveServerFirst("garbage"); err == nil {
		t.Fatal("expected an error for a malformed server-first message")
	}
}

func TestScramRejectsNonceMismatch(t *testing.T) {
	client, _ := NewClient("alice", "pw")
	client.FirstMessage()
	// a server-first whose nonce doesn't extend the client nonce must be rejected
	err := client.ReceiveServerFirst("r=totally-different-nonce,s=" + base64.StdEncoding.EncodeToString([]byte("salt")) + ",i=4096")
	if err == nil {
		t.Fatal("expected an error when the server nonce doesn't extend the client nonce")
	}
}
