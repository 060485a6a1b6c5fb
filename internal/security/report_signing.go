// Package security signs scan reports so downstream consumers can
// verify a report has not been altered after the oracle produced it.
package security

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// SigningOptions configures report signing behavior
type SigningOptions struct {
	// Enabled toggles signing entirely; disabled signers pass payloads
	// through untouched
	Enabled bool `json:"enabled"`

	// Validity bounds how long a signature is accepted
	Validity time.Duration `json:"validity"`

	// StrictMode makes verification fail hard on missing signature
	// metadata instead of reporting unverified
	StrictMode bool `json:"strict_mode"`
}

// ReportSigner signs and verifies scan report payloads with an
// ephemeral secp256k1 key generated at startup.
type ReportSigner struct {
	privateKey       *ecdsa.PrivateKey
	publicKeyEncoded string
	opts             SigningOptions
}

// NewReportSigner generates a fresh key pair and returns the signer
func NewReportSigner(opts SigningOptions) (*ReportSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	publicKeyEncoded := base64.StdEncoding.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey))

	if opts.Validity <= 0 {
		opts.Validity = 24 * time.Hour
	}

	logrus.WithField("public_key", publicKeyEncoded[:16]+"...").Info("Report signer initialized")
	return &ReportSigner{
		privateKey:       privateKey,
		publicKeyEncoded: publicKeyEncoded,
		opts:             opts,
	}, nil
}

// PublicKey returns the base64-encoded public key
func (s *ReportSigner) PublicKey() string {
	return s.publicKeyEncoded
}

// SignReport wraps a report payload with signature metadata under the
// _signature key. With signing disabled the payload converts to a map
// and passes through unsigned.
func (s *ReportSigner) SignReport(payload any) (map[string]any, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	var result map[string]any
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to convert report to map: %w", err)
	}
	if !s.opts.Enabled {
		return result, nil
	}

	digest := crypto.Keccak256Hash(payloadBytes)
	signature, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign report: %w", err)
	}

	now := time.Now()
	result["_signature"] = map[string]any{
		"signature":   base64.StdEncoding.EncodeToString(signature),
		"public_key":  s.publicKeyEncoded,
		"algorithm":   "ECDSA-secp256k1-Keccak256",
		"sha256":      fmt.Sprintf("%x", sha256.Sum256(payloadBytes)),
		"keccak256":   digest.Hex(),
		"timestamp":   now.Unix(),
		"valid_until": now.Add(s.opts.Validity).Unix(),
	}
	return result, nil
}

// VerifyReport checks the signature metadata on a signed report.
// Returns (false, nil) for an unsigned report unless StrictMode is on.
func (s *ReportSigner) VerifyReport(signed map[string]any) (bool, error) {
	if !s.opts.Enabled {
		return true, nil
	}

	meta, ok := signed["_signature"].(map[string]any)
	if !ok {
		if s.opts.StrictMode {
			return false, fmt.Errorf("signature metadata missing")
		}
		logrus.Warn("Signature metadata missing from report")
		return false, nil
	}

	signatureStr, ok := meta["signature"].(string)
	if !ok {
		return false, fmt.Errorf("invalid signature format")
	}
	publicKeyStr, ok := meta["public_key"].(string)
	if !ok {
		return false, fmt.Errorf("invalid public key format")
	}
	validUntil, ok := meta["valid_until"].(float64)
	if !ok {
		return false, fmt.Errorf("invalid valid_until format")
	}
	if now := time.Now().Unix(); now > int64(validUntil) {
		return false, fmt.Errorf("signature expired at %v", time.Unix(int64(validUntil), 0))
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(signatureStr)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	publicKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyStr)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key: %w", err)
	}

	// Recompute the digest over the payload without its signature block
	payload := make(map[string]any, len(signed))
	for k, v := range signed {
		if k != "_signature" {
			payload[k] = v
		}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal report: %w", err)
	}
	digest := crypto.Keccak256Hash(payloadBytes)

	// crypto.Sign appends a recovery byte; VerifySignature wants r||s
	if len(signatureBytes) != 65 {
		return false, fmt.Errorf("invalid signature length: %d", len(signatureBytes))
	}
	if !crypto.VerifySignature(publicKeyBytes, digest.Bytes(), signatureBytes[:64]) {
		return false, fmt.Errorf("signature verification failed")
	}
	return true, nil
}
