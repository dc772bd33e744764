package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"go-credential-verifier/hashing"
)

// SignatureError is the only error Verify returns.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Reason
}

func signatureErrorf(format string, args ...any) *SignatureError {
	return &SignatureError{Reason: fmt.Sprintf(format, args...)}
}

// Sign hashes signedAttributes with alg.Hash and signs the digest with key. The
// returned signature is in signed-byte form.
func Sign(key crypto.Signer, alg Algorithm, signedAttributes []byte) ([]int8, error) {
	if key == nil {
		return nil, errors.New("no signing key")
	}
	hash, err := cryptoHash(alg)
	if err != nil {
		return nil, err
	}
	digest, err := hashing.Sum(alg.Hash, signedAttributes)
	if err != nil {
		return nil, err
	}

	var opts crypto.SignerOpts
	switch alg.Family {
	case RSAPSS:
		if _, ok := key.Public().(*rsa.PublicKey); !ok {
			return nil, fmt.Errorf("%s requires an RSA key, got %T", alg.Family, key.Public())
		}
		if alg.SaltLength == 0 {
			return nil, errors.New("crypto/rsa cannot sign with an empty PSS salt")
		}
		opts = &rsa.PSSOptions{SaltLength: pssSaltLength(alg), Hash: hash}
	case ECDSA:
		if _, ok := key.Public().(*ecdsa.PublicKey); !ok {
			return nil, fmt.Errorf("%s requires an EC key, got %T", alg.Family, key.Public())
		}
		opts = hash
	case RSA:
		if _, ok := key.Public().(*rsa.PublicKey); !ok {
			return nil, fmt.Errorf("%s requires an RSA key, got %T", alg.Family, key.Public())
		}
		opts = hash
	default:
		return nil, fmt.Errorf("unknown signature family %q", alg.Family)
	}

	sig, err := key.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sign signed attributes: %w", err)
	}
	return ToSigned(sig), nil
}

// Verify checks sig over signedAttributes with the public key of the document signer.
// Malformed keys or signatures are reported as SignatureError like any mismatch.
func Verify(pub crypto.PublicKey, alg Algorithm, signedAttributes []byte, sig []int8) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = signatureErrorf("malformed key or signature: %v", r)
		}
	}()

	if pub == nil {
		return signatureErrorf("no public key")
	}
	if len(sig) == 0 {
		return signatureErrorf("empty signature")
	}
	hash, hashErr := cryptoHash(alg)
	if hashErr != nil {
		return signatureErrorf("%v", hashErr)
	}
	digest, hashErr := hashing.Sum(alg.Hash, signedAttributes)
	if hashErr != nil {
		return signatureErrorf("%v", hashErr)
	}
	raw := FromSigned(sig)

	switch alg.Family {
	case RSA:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return signatureErrorf("expected RSA public key, got %T", pub)
		}
		if err := rsa.VerifyPKCS1v15(rsaPub, hash, digest, raw); err != nil {
			return signatureErrorf("rsa: %v", err)
		}
	case RSAPSS:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return signatureErrorf("expected RSA public key, got %T", pub)
		}
		opts := &rsa.PSSOptions{SaltLength: pssSaltLength(alg), Hash: hash}
		if err := rsa.VerifyPSS(rsaPub, hash, digest, raw, opts); err != nil {
			return signatureErrorf("rsapss: %v", err)
		}
	case ECDSA:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return signatureErrorf("expected EC public key, got %T", pub)
		}
		if ecPub.Curve == nil || ecPub.X == nil || ecPub.Y == nil {
			return signatureErrorf("incomplete EC public key")
		}
		if alg.Curve != "" {
			name, err := CurveName(ecPub.Curve)
			if err != nil {
				return signatureErrorf("%v", err)
			}
			if want, _ := CanonicalCurveName(alg.Curve); want != name {
				return signatureErrorf("key is on %s, algorithm expects %s", name, alg.Curve)
			}
		}
		if !ecdsa.VerifyASN1(ecPub, digest, raw) {
			return signatureErrorf("ecdsa: invalid signature")
		}
	default:
		return signatureErrorf("unknown signature family %q", alg.Family)
	}
	return nil
}

// ToSigned maps every byte b >= 128 to b-256.
func ToSigned(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}

func FromSigned(s []int8) []byte {
	out := make([]byte, len(s))
	for i, v := range s {
		out[i] = byte(v)
	}
	return out
}

func cryptoHash(alg Algorithm) (crypto.Hash, error) {
	if err := alg.Hash.Check(hashing.FieldSignedAttr); err != nil {
		return 0, err
	}
	return hashing.CryptoHash(alg.Hash)
}

// pssSaltLength maps SaltLength to crypto/rsa. An empty salt can only be
// verified through rsa.PSSSaltLengthAuto, which detects it from the encoding.
func pssSaltLength(alg Algorithm) int {
	switch alg.SaltLength {
	case SaltLengthDigest:
		return hashing.Size(alg.Hash)
	case 0:
		return rsa.PSSSaltLengthAuto
	}
	return alg.SaltLength
}
