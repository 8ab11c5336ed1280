package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var ErrEmptySecret = errors.New("gateway secret key is required")

// Signer verifies notification signatures with the merchant's shared secret.
// The gateway defines the digest as MD5, so the hash is not configurable.
type Signer struct {
	secret string
}

// NewSigner returns a Signer bound to the shared secret provisioned by the
// gateway.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: secret}, nil
}

// Sign computes the signature the gateway attaches to n as skey:
//
//	key0 = md5(tranID + orderid + status + domain + amount + currency)
//	skey = md5(paydate + domain + key0 + appcode + secret)
func (s *Signer) Sign(n Notification) string {
	key0 := digest(n.TranID + n.OrderID + n.Status + n.Domain + n.Amount + n.Currency)
	return digest(n.PayDate + n.Domain + key0 + n.AppCode + s.secret)
}

// Verify reports whether n carries a valid signature. The comparison runs in
// constant time.
func (s *Signer) Verify(n Notification) bool {
	expected := s.Sign(n)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Skey)) == 1
}

func digest(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
