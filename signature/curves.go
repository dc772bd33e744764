package signature

import (
	"crypto/elliptic"
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/gmrtd/gmrtd/oid"
	"github.com/osanderson/brainpool"
)

const (
	CurveP224            = "P-224"
	CurveP256            = "P-256"
	CurveP384            = "P-384"
	CurveP521            = "P-521"
	CurveBrainpoolP256r1 = "brainpoolP256r1"
	CurveBrainpoolP384r1 = "brainpoolP384r1"
	CurveBrainpoolP512r1 = "brainpoolP512r1"
)

type namedCurve struct {
	name  string
	oid   asn1.ObjectIdentifier
	curve func() elliptic.Curve
}

var namedCurves = []namedCurve{
	{CurveP224, oid.OidSecp224r1, elliptic.P224},
	{CurveP256, oid.OidPrime256v1, elliptic.P256},
	{CurveP384, oid.OidSecp384r1, elliptic.P384},
	{CurveP521, oid.OidSecp521r1, elliptic.P521},
	{CurveBrainpoolP256r1, oid.OidBrainpoolP256r1, brainpool.P256r1},
	{CurveBrainpoolP384r1, oid.OidBrainpoolP384r1, brainpool.P384r1},
	{CurveBrainpoolP512r1, oid.OidBrainpoolP512r1, brainpool.P512r1},
}

// aliases used by certificates, configs and scanner payloads
var curveAliases = map[string]string{
	"p224":            CurveP224,
	"secp224r1":       CurveP224,
	"p256":            CurveP256,
	"secp256r1":       CurveP256,
	"prime256v1":      CurveP256,
	"p384":            CurveP384,
	"secp384r1":       CurveP384,
	"p521":            CurveP521,
	"secp521r1":       CurveP521,
	"brainpoolp256r1": CurveBrainpoolP256r1,
	"brainpoolp384r1": CurveBrainpoolP384r1,
	"brainpoolp512r1": CurveBrainpoolP512r1,
}

// CanonicalCurveName maps any known alias of a curve to its canonical name.
func CanonicalCurveName(name string) (string, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	canonical, ok := curveAliases[key]
	if !ok {
		return "", fmt.Errorf("unsupported curve %q", name)
	}
	return canonical, nil
}

func CurveByName(name string) (elliptic.Curve, error) {
	canonical, err := CanonicalCurveName(name)
	if err != nil {
		return nil, err
	}
	for _, c := range namedCurves {
		if c.name == canonical {
			return c.curve(), nil
		}
	}
	return nil, fmt.Errorf("unsupported curve %q", name)
}

func CurveByOID(curveOID asn1.ObjectIdentifier) (string, elliptic.Curve, error) {
	for _, c := range namedCurves {
		if c.oid.Equal(curveOID) {
			return c.name, c.curve(), nil
		}
	}
	return "", nil, fmt.Errorf("unsupported curve OID %s", curveOID)
}

func CurveOID(name string) (asn1.ObjectIdentifier, error) {
	canonical, err := CanonicalCurveName(name)
	if err != nil {
		return nil, err
	}
	for _, c := range namedCurves {
		if c.name == canonical {
			return c.oid, nil
		}
	}
	return nil, fmt.Errorf("unsupported curve %q", name)
}

// CurveName returns the canonical name of a curve instance, matched on its
// domain parameters.
func CurveName(curve elliptic.Curve) (string, error) {
	if curve == nil {
		return "", fmt.Errorf("nil curve")
	}
	params := curve.Params()
	for _, c := range namedCurves {
		candidate := c.curve().Params()
		if candidate.P.Cmp(params.P) == 0 && candidate.N.Cmp(params.N) == 0 && candidate.Gx.Cmp(params.Gx) == 0 {
			return c.name, nil
		}
	}
	return "", fmt.Errorf("unsupported curve %s", params.Name)
}
