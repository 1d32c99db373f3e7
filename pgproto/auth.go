package pgproto

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/qail-lang/qail/qailerr"
)

// AuthKind classifies a parsed AuthenticationRequest body.
type AuthKind int

const (
	AuthOk AuthKind = iota
	AuthCleartextPassword
	AuthMD5Password
	AuthSASL
	AuthSASLContinue
	AuthSASLFinal
	AuthUnsupported
)

// AuthRequest is a decoded AuthenticationRequest ('R') message body.
type AuthRequest struct {
	Kind       AuthKind
	MD5Salt    [4]byte
	Mechanisms []string // AuthSASL
	SASLData   []byte   // AuthSASLContinue / AuthSASLFinal
}

// ParseAuthRequest decodes an 'R' message body per the authentication
// sub-codes PostgreSQL defines.
func ParseAuthRequest(body []byte) (AuthRequest, error) {
	if len(body) < 4 {
		return AuthRequest{}, &qailerr.Error{Kind: qailerr.Protocol, Message: "short AuthenticationRequest"}
	}
	code := binary.BigEndian.Uint32(body[0:4])
	rest := body[4:]
	switch code {
	case 0:
		return AuthRequest{Kind: AuthOk}, nil
	case 3:
		return AuthRequest{Kind: AuthCleartextPassword}, nil
	case 5:
		if len(rest) < 4 {
			return AuthRequest{}, &qailerr.Error{Kind: qailerr.Protocol, Message: "short MD5 salt"}
		}
		var salt [4]byte
		copy(salt[:], rest[:4])
		return AuthRequest{Kind: AuthMD5Password, MD5Salt: salt}, nil
	case 10:
		var mechs []string
		for _, part := range strings.Split(string(rest), "\x00") {
			if part != "" {
				mechs = append(mechs, part)
			}
		}
		return AuthRequest{Kind: AuthSASL, Mechanisms: mechs}, nil
	case 11:
		return AuthRequest{Kind: AuthSASLContinue, SASLData: rest}, nil
	case 12:
		return AuthRequest{Kind: AuthSASLFinal, SASLData: rest}, nil
	default:
		return AuthRequest{Kind: AuthUnsupported}, nil
	}
}

// ComputeMD5Password implements `"md5"+md5(md5(password+user)+salt)`.
func ComputeMD5Password(user, password string, salt [4]byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum([]byte(innerHex + string(salt[:])))
	return "md5" + hex.EncodeToString(outer[:])
}
