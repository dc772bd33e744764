// Package verifier checks a disclosure proof against the relying party's policy
// and delegates the cryptographic check to the proof verifier resolved from the hub.
package verifier

//go:generate mockgen -source=types.go -destination=mocks/mocks.go -package=mocks ProofVerifier,CommitmentRegistry,Hub,PolicyStore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"go-credential-verifier/metrics"
)

const (
	DefaultFreshnessTolerance = 24 * time.Hour
	DefaultCallTimeout        = 10 * time.Second

	endOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second

	notDisclosedAge = "00"
)

// ErrInvalidInput marks requests that cannot be checked at all, such as a proof
// with unparsable field elements or too few public signals.
var ErrInvalidInput = errors.New("invalid verification input")

type Config struct {
	Scope              string
	Endpoint           string
	AllowedIDs         map[AttestationID]bool
	UserIdentifierType UserIDType
	// FreshnessTolerance is how far the disclosed date may lie in the future or,
	// counting from its end of day, in the past.
	FreshnessTolerance time.Duration
	// CallTimeout bounds each call to the hub, registry, policy store and verifier.
	CallTimeout time.Duration
}

type Verifier struct {
	cfg         Config
	hashedScope *big.Int
	hub         Hub
	policies    PolicyStore
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

type Option func(*Verifier)

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock replaces time.Now for the freshness check.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(v *Verifier) { v.tracer = tp.Tracer("go-credential-verifier/verifier") }
}

// New hashes the endpoint and scope once and returns a Verifier that is safe for
// concurrent use.
func New(cfg Config, hub Hub, policies PolicyStore, opts ...Option) (*Verifier, error) {
	if hub == nil || policies == nil {
		return nil, fmt.Errorf("verifier needs a hub and a policy store")
	}
	scope, err := HashEndpointWithScope(cfg.Endpoint, cfg.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to hash endpoint with scope: %w", err)
	}
	hashed, _ := new(big.Int).SetString(scope, 10)

	if cfg.FreshnessTolerance <= 0 {
		cfg.FreshnessTolerance = DefaultFreshnessTolerance
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.UserIdentifierType == "" {
		cfg.UserIdentifierType = UserIDTypeHex
	}

	v := &Verifier{
		cfg:         cfg,
		hashedScope: hashed,
		hub:         hub,
		policies:    policies,
		tracer:      otel.Tracer("go-credential-verifier/verifier"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// HashedScope is the scope signal proofs for this verifier must carry.
func (v *Verifier) HashedScope() string {
	return v.hashedScope.String()
}

// policyOutcome is what policy resolution produced: a policy, or the issue
// explaining why there is none.
type policyOutcome struct {
	policy   Policy
	found    bool
	issue    Issue
	userData UserData
}

// Verify runs every consistency check and collects the failures into one
// ConfigMismatchError. Only a missing registry, a missing policy and timeouts
// end the run early. When all checks pass the proof goes to the verifier.
func (v *Verifier) Verify(ctx context.Context, attestationID AttestationID, proof Proof, publicSignals []string, userContextData string) (result *Result, err error) {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "verifier.Verify", trace.WithAttributes(attribute.Int("attestation_id", int(attestationID))))
	defer func() {
		v.metrics.ObserveVerifyLatency(time.Since(start))
		v.metrics.IncrementOutcome(strconv.Itoa(int(attestationID)), outcomeOf(result, err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "verification failed")
		}
		span.End()
	}()

	var issues []Issue

	if !v.cfg.AllowedIDs[attestationID] {
		issues = append(issues, Issue{Type: InvalidID, Message: fmt.Sprintf("Attestation ID is not allowed, received: %d", attestationID)})
	}

	indices, known := DiscloseIndices[attestationID]
	if !known {
		issues = append(issues, Issue{Type: InvalidAttestationID, Message: fmt.Sprintf("Unknown attestation ID: %d", attestationID)})
		return nil, v.mismatch(issues)
	}

	signals := NormalizeSignals(publicSignals)
	if len(signals) < SignalCount(attestationID) {
		return nil, fmt.Errorf("%w: expected %d public signals, got %d", ErrInvalidInput, SignalCount(attestationID), len(signals))
	}

	issues = append(issues, v.checkUserContext(signals[indices.UserIdentifier], userContextData)...)
	issues = append(issues, v.checkScope(signals[indices.Scope])...)

	// The root lookup and policy resolution are independent round trips.
	var rootIssues []Issue
	var outcome policyOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rootIssues, err = v.checkRoot(gctx, attestationID, signals[indices.MerkleRoot])
		return err
	})
	g.Go(func() error {
		var err error
		outcome, err = v.resolvePolicy(gctx, userContextData)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	issues = append(issues, rootIssues...)

	if signals[indices.AttestationID] != strconv.Itoa(int(attestationID)) {
		issues = append(issues, Issue{Type: InvalidAttestationID, Message: "Attestation ID does not match with the one in the circuit"})
	}

	if !outcome.found {
		issues = append(issues, outcome.issue)
		return nil, v.mismatch(issues)
	}
	policy := outcome.policy

	disclosure, decodeErr := DecodeDisclosure(attestationID, signals)
	if decodeErr != nil {
		issues = append(issues, Issue{Type: InvalidMinimumAge, Message: fmt.Sprintf("Error formatting revealed data: %v", decodeErr)})
	}

	fc := indices.ForbiddenCountriesListPacked
	forbidden := UnpackForbiddenCountries(signals[fc : fc+forbiddenCountriesSignals])
	issues = append(issues, checkForbiddenCountries(policy, forbidden)...)
	if decodeErr == nil {
		issues = append(issues, checkMinimumAge(policy, disclosure.MinimumAge)...)
	}
	issues = append(issues, v.checkTimestamp(attestationID, signals)...)

	if len(issues) > 0 {
		return nil, v.mismatch(issues)
	}

	proofValid, err := v.verifyProof(ctx, attestationID, proof, signals)
	if err != nil {
		return nil, err
	}

	anyOfac := false
	for _, bit := range disclosure.Ofac {
		anyOfac = anyOfac || bit
	}

	slog.Debug("Verified disclosure proof", "attestation_id", int(attestationID), "proof_valid", proofValid)
	return &Result{
		AttestationID: attestationID,
		IsValidDetails: IsValidDetails{
			IsValid:           proofValid,
			IsMinimumAgeValid: minimumAgeMet(policy, disclosure.MinimumAge),
			IsOfacValid:       policy.Ofac && anyOfac,
		},
		ForbiddenCountriesList: forbidden,
		DiscloseOutput:         disclosure,
		UserData:               outcome.userData,
	}, nil
}

func (v *Verifier) mismatch(issues []Issue) error {
	for _, issue := range issues {
		v.metrics.IncrementIssue(string(issue.Type))
	}
	return &ConfigMismatchError{Issues: issues}
}

func (v *Verifier) checkUserContext(signal, userContextData string) []Issue {
	data, err := hex.DecodeString(userContextData)
	if err != nil {
		return []Issue{{Type: InvalidUserContextHash, Message: fmt.Sprintf("Invalid hex string in userContextData: %v", err)}}
	}
	expected := UserContextHash(data)
	inCircuit, err := ParseSignal(signal)
	if err != nil || inCircuit.Cmp(expected) != 0 {
		return []Issue{{
			Type:    InvalidUserContextHash,
			Message: fmt.Sprintf("User context hash does not match with the one in the circuit\nCircuit: %s\nUser context hash: %s", signal, expected),
		}}
	}
	return nil
}

func (v *Verifier) checkScope(signal string) []Issue {
	inCircuit, err := ParseSignal(signal)
	if err != nil || inCircuit.Cmp(v.hashedScope) != 0 {
		return []Issue{{
			Type:    InvalidScope,
			Message: fmt.Sprintf("Scope does not match with the one in the circuit\nCircuit: %s\nScope: %s", signal, v.hashedScope),
		}}
	}
	return nil
}

// checkRoot resolves the registry for the attestation and asks it about the root.
// A missing registry ends the verification.
func (v *Verifier) checkRoot(ctx context.Context, attestationID AttestationID, rootSignal string) ([]Issue, error) {
	ctx, span := v.tracer.Start(ctx, "hub.Registry")
	defer span.End()

	var registry CommitmentRegistry
	err := v.call(ctx, "registry", func(ctx context.Context) error {
		var err error
		registry, err = v.hub.Registry(ctx, attestationID.Bytes32())
		return err
	})
	if err != nil {
		var external *ExternalServiceError
		if errors.As(err, &external) {
			return nil, err
		}
		return nil, &RegistryContractError{AttestationID: attestationID, Err: err}
	}
	if registry == nil {
		return nil, &RegistryContractError{AttestationID: attestationID}
	}

	root, err := ParseSignal(rootSignal)
	if err != nil {
		return []Issue{{Type: InvalidRoot, Message: fmt.Sprintf("Onchain root does not exist, received: %s", rootSignal)}}, nil
	}
	var known bool
	err = v.call(ctx, "registry", func(ctx context.Context) error {
		var err error
		known, err = registry.CheckIdentityCommitmentRoot(ctx, root)
		return err
	})
	var external *ExternalServiceError
	if errors.As(err, &external) {
		return nil, err
	}
	if err != nil || !known {
		if err != nil {
			slog.Warn("Commitment root lookup failed", "attestation_id", int(attestationID), "error", err)
		}
		return []Issue{{Type: InvalidRoot, Message: fmt.Sprintf("Onchain root does not exist, received: %s", rootSignal)}}, nil
	}
	return nil, nil
}

func (v *Verifier) resolvePolicy(ctx context.Context, userContextData string) (policyOutcome, error) {
	ctx, span := v.tracer.Start(ctx, "policy.Resolve")
	defer span.End()

	contextData, err := SplitContextData(userContextData)
	if err != nil {
		return policyOutcome{issue: Issue{Type: ConfigNotFound, Message: err.Error()}}, nil
	}
	userData := UserData{
		UserIdentifier:  CastToUserIdentifier(contextData.UserIdentifier, v.cfg.UserIdentifierType),
		UserDefinedData: contextData.UserDefinedData,
	}

	var configID string
	err = v.call(ctx, "policy", func(ctx context.Context) error {
		var err error
		configID, err = v.policies.GetActionID(ctx, userData.UserIdentifier, userData.UserDefinedData)
		return err
	})
	var external *ExternalServiceError
	if errors.As(err, &external) {
		return policyOutcome{}, err
	}
	if err != nil || configID == "" {
		return policyOutcome{userData: userData, issue: Issue{Type: ConfigNotFound, Message: "Config Id not found"}}, nil
	}

	var policy Policy
	err = v.call(ctx, "policy", func(ctx context.Context) error {
		var err error
		policy, err = v.policies.GetConfig(ctx, configID)
		return err
	})
	if errors.As(err, &external) {
		return policyOutcome{}, err
	}
	if err != nil || policy.IsEmpty() {
		return policyOutcome{userData: userData, issue: Issue{Type: ConfigNotFound, Message: fmt.Sprintf("Config not found for %s", configID)}}, nil
	}
	return policyOutcome{policy: policy, found: true, userData: userData}, nil
}

// checkForbiddenCountries requires every excluded country of the policy to be
// among the disclosed ones.
func checkForbiddenCountries(policy Policy, disclosed []string) []Issue {
	set := make(map[string]bool, len(disclosed))
	for _, c := range disclosed {
		set[c] = true
	}
	for _, c := range policy.ExcludedCountries {
		if !set[c] {
			return []Issue{{
				Type: InvalidForbiddenCountriesList,
				Message: fmt.Sprintf("Forbidden countries list in config does not match with the one in the circuit\nCircuit: %s\nConfig: %v",
					strings.Join(disclosed, ", "), policy.ExcludedCountries),
			}}
		}
	}
	return nil
}

func checkMinimumAge(policy Policy, disclosed string) []Issue {
	if policy.MinimumAge == 0 || disclosed == notDisclosedAge {
		return nil
	}
	if age, err := strconv.Atoi(disclosed); err == nil && age == policy.MinimumAge {
		return nil
	}
	return []Issue{{
		Type:    InvalidMinimumAge,
		Message: fmt.Sprintf("Minimum age in config does not match with the one in the circuit\nCircuit: %s\nConfig: %d", disclosed, policy.MinimumAge),
	}}
}

// minimumAgeMet reports whether the disclosed age proves the policy threshold.
func minimumAgeMet(policy Policy, disclosed string) bool {
	if policy.MinimumAge == 0 {
		return true
	}
	age, err := strconv.Atoi(disclosed)
	return err == nil && age >= policy.MinimumAge
}

func (v *Verifier) checkTimestamp(attestationID AttestationID, signals []string) []Issue {
	date, err := DisclosedDate(attestationID, signals)
	if err != nil {
		return []Issue{{Type: InvalidTimestamp, Message: fmt.Sprintf("Circuit timestamp is malformed: %v", err)}}
	}
	now := v.now().UTC()
	var issues []Issue
	if date.After(now.Add(v.cfg.FreshnessTolerance)) {
		issues = append(issues, Issue{Type: InvalidTimestamp, Message: "Circuit timestamp is in the future"})
	}
	if date.Add(endOfDay).Before(now.Add(-v.cfg.FreshnessTolerance)) {
		issues = append(issues, Issue{Type: InvalidTimestamp, Message: "Circuit timestamp is too old"})
	}
	return issues
}

func (v *Verifier) verifyProof(ctx context.Context, attestationID AttestationID, proof Proof, signals []string) (bool, error) {
	ctx, span := v.tracer.Start(ctx, "verifier.VerifyProof")
	defer span.End()

	a, b, c, err := parseProof(proof)
	if err != nil {
		return false, err
	}
	vector := make([]*big.Int, SignalCount(attestationID))
	for i := range vector {
		vector[i] = big.NewInt(0)
		if i < len(signals) {
			n, err := ParseSignal(signals[i])
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			vector[i] = n
		}
	}

	var proofVerifier ProofVerifier
	err = v.call(ctx, "hub", func(ctx context.Context) error {
		var err error
		proofVerifier, err = v.hub.DiscloseVerifier(ctx, attestationID.Bytes32())
		return err
	})
	var external *ExternalServiceError
	if errors.As(err, &external) {
		return false, err
	}
	if err != nil {
		return false, &VerifierContractError{AttestationID: attestationID, Err: err}
	}
	if proofVerifier == nil {
		return false, &VerifierContractError{AttestationID: attestationID}
	}

	var valid bool
	err = v.call(ctx, "proof_verifier", func(ctx context.Context) error {
		var err error
		valid, err = proofVerifier.VerifyProof(ctx, a, b, c, vector)
		return err
	})
	if errors.As(err, &external) {
		return false, err
	}
	if err != nil {
		slog.Warn("Proof verifier call failed, treating proof as invalid", "attestation_id", int(attestationID), "error", err)
		return false, nil
	}
	span.SetAttributes(attribute.Bool("proof_valid", valid))
	return valid, nil
}

// parseProof parses the field elements and swaps each row of b into the layout the
// verifier expects.
func parseProof(proof Proof) ([2]*big.Int, [2][2]*big.Int, [2]*big.Int, error) {
	var a, c [2]*big.Int
	var b [2][2]*big.Int
	parse := func(name, s string) (*big.Int, error) {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: invalid proof.%s: %s", ErrInvalidInput, name, s)
		}
		return n, nil
	}

	var err error
	for i := 0; i < 2; i++ {
		if a[i], err = parse(fmt.Sprintf("A[%d]", i), proof.A[i]); err != nil {
			return a, b, c, err
		}
		if c[i], err = parse(fmt.Sprintf("C[%d]", i), proof.C[i]); err != nil {
			return a, b, c, err
		}
		for j := 0; j < 2; j++ {
			if b[i][1-j], err = parse(fmt.Sprintf("B[%d][%d]", i, j), proof.B[i][j]); err != nil {
				return a, b, c, err
			}
		}
	}
	return a, b, c, nil
}

// call runs fn under the per-call timeout and turns a timeout into an
// ExternalServiceError.
func (v *Verifier) call(ctx context.Context, target string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	v.metrics.ObserveExternalLatency(target, time.Since(start))

	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return &ExternalServiceError{Service: target, Err: err}
	}
	return err
}

func outcomeOf(result *Result, err error) string {
	var mismatch *ConfigMismatchError
	switch {
	case errors.As(err, &mismatch):
		return "config_mismatch"
	case err != nil:
		return "error"
	case result.IsValidDetails.IsValid:
		return "valid"
	default:
		return "invalid_proof"
	}
}
