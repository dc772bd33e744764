package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/gmrtd/gmrtd/cms"
	"github.com/gmrtd/gmrtd/document"
	"github.com/gmrtd/gmrtd/tlv"

	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
)

// PlatformChip tags errors for raw chip reads handled by FromSOD.
const PlatformChip Platform = "chip"

const (
	tagEFSOD = 0x77
	tagDG1   = 0x61
	tagMRZ   = 0x5F1F
)

// ChipRead is a raw chip read as the mobile readers deliver it: EF.SOD and the
// data groups keyed "DG1".."DG16", all hex encoded.
type ChipRead struct {
	EFSOD      string            `json:"EF_SOD"`
	DataGroups map[string]string `json:"data_groups"`
}

// FromSOD rebuilds a Record from EF.SOD and the data groups read from the chip.
// Every data group supplied must match its digest in the security object.
func FromSOD(read ChipRead) (*Record, error) {
	sodBytes, err := hex.DecodeString(read.EFSOD)
	if err != nil || len(sodBytes) == 0 {
		return nil, &MalformedScanError{Platform: PlatformChip, Field: "EF_SOD", Reason: "is missing or not hex"}
	}
	dg1Hex, ok := read.DataGroups["DG1"]
	if !ok {
		return nil, &MalformedScanError{Platform: PlatformChip, Field: "DG1", Reason: "is missing"}
	}
	dg1Bytes, err := hex.DecodeString(dg1Hex)
	if err != nil {
		return nil, &MalformedScanError{Platform: PlatformChip, Field: "DG1", Reason: "is not hex"}
	}
	mrzString, err := mrzFromDG1(dg1Bytes)
	if err != nil {
		return nil, err
	}

	sod, err := parseSOD(sodBytes)
	if err != nil {
		return nil, err
	}
	lds := sod.LdsSecurityObject
	dgAlg, err := hashing.FromOID(lds.HashAlgorithm.Algorithm)
	if err != nil {
		return nil, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldDG1, Algorithm: lds.HashAlgorithm.Algorithm.String()}
	}
	for name, dgHex := range read.DataGroups {
		tag, err := parseDgNumber(name)
		if err != nil {
			return nil, &MalformedScanError{Platform: PlatformChip, Field: name, Reason: err.Error()}
		}
		dgBytes, err := hex.DecodeString(dgHex)
		if err != nil {
			return nil, &MalformedScanError{Platform: PlatformChip, Field: name, Reason: "is not hex"}
		}
		computed, err := hashing.Sum(dgAlg, dgBytes)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(computed, sod.DgHash(tag)) {
			return nil, &HashMismatchError{Field: hashing.FieldDG1, Tag: tag}
		}
	}

	signer, cert, err := signerOf(sod.SD)
	if err != nil {
		return nil, err
	}
	signerAlg, err := hashing.FromOID(signer.DigestAlgorithm.Algorithm)
	if err != nil {
		return nil, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldSignedAttr, Algorithm: signer.DigestAlgorithm.Algorithm.String()}
	}

	groups := make(map[int][]byte, len(lds.DataGroupHashValues))
	for _, h := range lds.DataGroupHashValues {
		groups[h.DataGroupNumber] = h.DataGroupHashValue
	}
	docType, category := TypeFor(mrz.KindOf(mrzString), false)
	record := &Record{
		MRZ:                        mrzString,
		DocumentSigningCertificate: cert,
		DataGroupHashes:            groups,
		EContent:                   sod.SD.Content.EContent,
		SignedAttributes:           signer.AuthenticatedAttributes.SetOfAsnBytes(),
		Signature:                  signature.ToSigned(signer.EncryptedDigest),
		DocumentType:               docType,
		DocumentCategory:           category,
		Metadata: Metadata{
			DG1HashAlgo:        dgAlg,
			EContentHashAlgo:   signerAlg,
			SignedAttrHashAlgo: signerAlg,
		},
	}
	slog.Debug("Rebuilt record from EF.SOD", "data_groups", len(groups), "dg_hash_algo", dgAlg, "signer_hash_algo", signerAlg)
	return record, nil
}

func mrzFromDG1(dg1 []byte) (string, error) {
	nodes, err := tlv.Decode(dg1)
	if err != nil {
		return "", &MalformedScanError{Platform: PlatformChip, Field: "DG1", Reason: "is not TLV encoded"}
	}
	root := nodes.NodeByTag(tagDG1)
	if !root.IsValidNode() {
		return "", &MalformedScanError{Platform: PlatformChip, Field: "DG1", Reason: "has no 0x61 tag"}
	}
	node := root.NodeByTag(tagMRZ)
	if !node.IsValidNode() {
		return "", &MalformedScanError{Platform: PlatformChip, Field: "DG1", Reason: "has no MRZ (0x5F1F)"}
	}
	value := node.Value()
	if err := mrz.Validate(string(value)); err != nil {
		return "", err
	}
	return string(value), nil
}

// parseSOD accepts EF.SOD with or without its 0x77 application tag.
func parseSOD(sodBytes []byte) (*document.SOD, error) {
	if sodBytes[0] != tagEFSOD {
		sodBytes = tlv.NewTlvSimpleNode(tagEFSOD, sodBytes).Encode()
	}
	sod, err := document.NewSOD(sodBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EF.SOD: %w", err)
	}
	if len(sod.SD.Content.EContent) == 0 {
		return nil, fmt.Errorf("no eContent found in EF.SOD")
	}
	return sod, nil
}

// signerOf returns the single signer of the security object and the DER of the
// document signing certificate embedded next to it.
func signerOf(sd *cms.SignedData) (*cms.SignerInfo, []byte, error) {
	if len(sd.SignerInfos) != 1 {
		return nil, nil, fmt.Errorf("expected one signer in EF.SOD, found %d", len(sd.SignerInfos))
	}
	signer := &sd.SignerInfos[0]
	if len(signer.AuthenticatedAttributes) == 0 {
		return nil, nil, fmt.Errorf("SignerInfo carries no signed attributes")
	}

	certs, err := cms.ParseCertificates(sd.Certificates.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificates in EF.SOD: %w", err)
	}
	if len(certs) == 0 {
		return nil, nil, fmt.Errorf("EF.SOD does not embed the document signing certificate")
	}
	return signer, certs[0].Raw, nil
}
