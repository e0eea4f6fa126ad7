// Package registration orchestrates the full pipeline: document
// verification, canonical identity hashing, on-chain registration and
// analytics accounting.
package registration

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"erthid/internal/analytics"
	"erthid/internal/attestation"
	"erthid/internal/chain"
	"erthid/internal/events"
	"erthid/internal/identity"
	"erthid/internal/platform/metrics"
	"erthid/internal/verification"
	dErrors "erthid/pkg/domain-errors"
)

// Verifier inspects a base64 document image and always returns a verdict,
// folding every failure mode into Success=false.
type Verifier interface {
	Verify(ctx context.Context, imageBase64 string) verification.Verdict
}

// Registrar broadcasts the register message. A nonzero result code is an
// on-chain rejection, not an error.
type Registrar interface {
	Execute(ctx context.Context, msg chain.RegisterMsg) (chain.BroadcastResult, error)
}

// Attestations appends an audit record per completed broadcast.
type Attestations interface {
	Append(ctx context.Context, address, idHash, txHash string, code uint32) (*attestation.Attestation, error)
}

// Events publishes lifecycle events. Publishing is best-effort.
type Events interface {
	Publish(ctx context.Context, event events.Event)
}

// Request is one registration attempt.
type Request struct {
	Address    string
	IDImage    string
	ReferredBy string
}

// Result is returned only when the broadcast was accepted on-chain.
type Result struct {
	Hash     string
	Response chain.BroadcastResult
}

// VerificationError reports a document that did not pass verification.
type VerificationError struct {
	IsFake bool
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s", e.Reason)
}

// ChainRejectionError reports a broadcast the chain executed and rejected.
type ChainRejectionError struct {
	Response chain.BroadcastResult
}

func (e *ChainRejectionError) Error() string {
	return fmt.Sprintf("transaction rejected with code %d: %s", e.Response.Code, e.Response.RawLog)
}

// Service runs the registration pipeline.
type Service struct {
	verifier     Verifier
	registrar    Registrar
	analytics    analytics.Store
	attestations Attestations
	events       Events
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents enables lifecycle event publishing.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithAttestations enables the append-only broadcast audit log.
func WithAttestations(a Attestations) Option {
	return func(s *Service) { s.attestations = a }
}

func NewService(verifier Verifier, registrar Registrar, store analytics.Store, opts ...Option) *Service {
	s := &Service{
		verifier:  verifier,
		registrar: registrar,
		analytics: store,
		logger:    slog.Default(),
		tracer:    otel.Tracer("erthid/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs verification, hashing and broadcast for one request.
//
// Counter semantics: a rejected document counts one rejection, a passed
// verification counts one verification, and only a broadcast accepted with
// code 0 counts one registration. An on-chain rejection counts nothing
// further.
func (s *Service) Register(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer span.End()

	if req.Address == "" || req.IDImage == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Missing required fields")
	}
	span.SetAttributes(attribute.String("registration.address", req.Address))

	verdict := s.verify(ctx, req.IDImage)
	if !verdict.Success {
		reason := "Unable to verify identity"
		if verdict.FakeReason != nil {
			reason = *verdict.FakeReason
		}
		s.count(ctx, analytics.KindRejection)
		if s.metrics != nil {
			s.metrics.RejectionsTotal.Inc()
		}
		s.publish(ctx, events.Event{
			Type:    events.TypeRejected,
			Address: req.Address,
			Reason:  reason,
		})
		s.logger.InfoContext(ctx, "document rejected",
			"address", req.Address,
			"is_fake", verdict.IsFake,
			"reason", reason,
		)
		return nil, &VerificationError{IsFake: verdict.IsFake, Reason: reason}
	}

	s.count(ctx, analytics.KindVerification)
	if s.metrics != nil {
		s.metrics.VerificationsTotal.Inc()
	}

	hash := identity.Hash(verdict.Identity)
	s.publish(ctx, events.Event{
		Type:    events.TypeVerified,
		Address: req.Address,
		IDHash:  hash,
	})

	msg := chain.RegisterMsg{Address: req.Address, IDHash: hash}
	if req.ReferredBy != "" {
		msg.Affiliate = &req.ReferredBy
	}

	response, err := s.broadcast(ctx, msg)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ChainFailuresTotal.Inc()
		}
		s.logger.ErrorContext(ctx, "broadcast failed", "address", req.Address, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Registration failed")
	}

	if response.Code != 0 {
		if s.metrics != nil {
			s.metrics.ChainFailuresTotal.Inc()
		}
		s.publish(ctx, events.Event{
			Type:    events.TypeChainFailed,
			Address: req.Address,
			IDHash:  hash,
			TxHash:  response.TxHash,
			Code:    response.Code,
		})
		s.logger.WarnContext(ctx, "transaction rejected on-chain",
			"address", req.Address,
			"code", response.Code,
			"raw_log", response.RawLog,
		)
		return nil, &ChainRejectionError{Response: response}
	}

	s.count(ctx, analytics.KindRegistration)
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.attest(ctx, req.Address, hash, response)
	s.publish(ctx, events.Event{
		Type:    events.TypeCompleted,
		Address: req.Address,
		IDHash:  hash,
		TxHash:  response.TxHash,
	})
	s.logger.InfoContext(ctx, "registration completed",
		"address", req.Address,
		"tx_hash", response.TxHash,
	)

	return &Result{Hash: hash, Response: response}, nil
}

func (s *Service) verify(ctx context.Context, imageBase64 string) verification.Verdict {
	ctx, span := s.tracer.Start(ctx, "registration.verify")
	defer span.End()
	return s.verifier.Verify(ctx, imageBase64)
}

func (s *Service) broadcast(ctx context.Context, msg chain.RegisterMsg) (chain.BroadcastResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.broadcast")
	defer span.End()
	return s.registrar.Execute(ctx, msg)
}

// count is best-effort; a counter failure never fails the request.
func (s *Service) count(ctx context.Context, kind analytics.Kind) {
	if err := s.analytics.Increment(ctx, kind); err != nil {
		s.logger.ErrorContext(ctx, "analytics increment failed", "kind", string(kind), "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}

func (s *Service) attest(ctx context.Context, address, hash string, response chain.BroadcastResult) {
	if s.attestations == nil {
		return
	}
	if _, err := s.attestations.Append(ctx, address, hash, response.TxHash, response.Code); err != nil {
		s.logger.ErrorContext(ctx, "attestation append failed", "address", address, "error", err)
	}
}
