package registration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"erthid/internal/analytics"
	"erthid/internal/chain"
	"erthid/internal/events"
	"erthid/internal/identity"
	"erthid/internal/platform/logger"
	"erthid/internal/registration"
	"erthid/internal/verification"
	dErrors "erthid/pkg/domain-errors"
)

type stubVerifier struct {
	verdict verification.Verdict
	called  bool
}

func (v *stubVerifier) Verify(_ context.Context, _ string) verification.Verdict {
	v.called = true
	return v.verdict
}

type stubRegistrar struct {
	result chain.BroadcastResult
	err    error
	gotMsg chain.RegisterMsg
	called int
}

func (r *stubRegistrar) Execute(_ context.Context, msg chain.RegisterMsg) (chain.BroadcastResult, error) {
	r.called++
	r.gotMsg = msg
	return r.result, r.err
}

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.published = append(p.published, event)
}

func passingVerdict() verification.Verdict {
	country := "USA"
	idNumber := "D12345678"
	name := "Jane Smith"
	dob := int64(639878400)
	exp := int64(1925000000)
	return verification.Verdict{
		Success: true,
		Identity: &identity.Record{
			Country:            &country,
			IDNumber:           &idNumber,
			FullName:           &name,
			DateOfBirth:        &dob,
			DocumentExpiration: &exp,
		},
		IsFake: false,
	}
}

func fakeVerdict(reason string) verification.Verdict {
	return verification.Verdict{
		Success:    false,
		Identity:   identity.Empty(),
		IsFake:     true,
		FakeReason: &reason,
	}
}

type ServiceSuite struct {
	suite.Suite
	store *analytics.FileStore
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	store, err := analytics.NewFileStore(filepath.Join(s.T().TempDir(), "analytics.json"), logger.New("development"))
	s.Require().NoError(err)
	s.store = store
}

func (s *ServiceSuite) newService(verifier registration.Verifier, registrar registration.Registrar, opts ...registration.Option) *registration.Service {
	opts = append(opts, registration.WithLogger(logger.New("development")))
	return registration.NewService(verifier, registrar, s.store, opts...)
}

func (s *ServiceSuite) latest() analytics.Snapshot {
	snap, err := s.store.Latest(context.Background())
	s.Require().NoError(err)
	return snap
}

func (s *ServiceSuite) TestMissingAddressSkipsVerification() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	registrar := &stubRegistrar{}
	svc := s.newService(verifier, registrar)

	_, err := svc.Register(context.Background(), registration.Request{IDImage: "aGVsbG8="})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.False(verifier.called, "verifier must not run without an address")
	s.Zero(registrar.called)

	snap := s.latest()
	s.Zero(snap.Verifications)
	s.Zero(snap.Rejections)
}

func (s *ServiceSuite) TestMissingImageSkipsVerification() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	svc := s.newService(verifier, &stubRegistrar{})

	_, err := svc.Register(context.Background(), registration.Request{Address: "secret1user"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.False(verifier.called)
}

func (s *ServiceSuite) TestRejectedDocumentCountsRejection() {
	verifier := &stubVerifier{verdict: fakeVerdict("Photo edges show tampering")}
	registrar := &stubRegistrar{}
	publisher := &recordingPublisher{}
	svc := s.newService(verifier, registrar, registration.WithEvents(publisher))

	_, err := svc.Register(context.Background(), registration.Request{
		Address: "secret1user",
		IDImage: "aGVsbG8=",
	})
	s.Require().Error(err)

	var verr *registration.VerificationError
	s.Require().ErrorAs(err, &verr)
	s.True(verr.IsFake)
	s.Equal("Photo edges show tampering", verr.Reason)
	s.Zero(registrar.called, "rejected documents never reach the chain")

	snap := s.latest()
	s.Equal(int64(1), snap.Rejections)
	s.Zero(snap.Verifications)
	s.Zero(snap.Registrations)

	s.Require().Len(publisher.published, 1)
	s.Equal(events.TypeRejected, publisher.published[0].Type)
	s.Equal("Photo edges show tampering", publisher.published[0].Reason)
}

func (s *ServiceSuite) TestAcceptedBroadcastCompletesRegistration() {
	verdict := passingVerdict()
	verifier := &stubVerifier{verdict: verdict}
	registrar := &stubRegistrar{result: chain.BroadcastResult{Code: 0, TxHash: "ABC123"}}
	publisher := &recordingPublisher{}
	svc := s.newService(verifier, registrar, registration.WithEvents(publisher))

	result, err := svc.Register(context.Background(), registration.Request{
		Address: "secret1user",
		IDImage: "aGVsbG8=",
	})
	s.Require().NoError(err)
	s.Equal(identity.Hash(verdict.Identity), result.Hash)
	s.Equal("ABC123", result.Response.TxHash)

	s.Equal(1, registrar.called)
	s.Equal("secret1user", registrar.gotMsg.Address)
	s.Equal(result.Hash, registrar.gotMsg.IDHash)
	s.Nil(registrar.gotMsg.Affiliate, "no referrer means a null affiliate")

	snap := s.latest()
	s.Equal(int64(1), snap.Verifications)
	s.Equal(int64(1), snap.Registrations)
	s.Zero(snap.Rejections)

	s.Require().Len(publisher.published, 2)
	s.Equal(events.TypeVerified, publisher.published[0].Type)
	s.Equal(events.TypeCompleted, publisher.published[1].Type)
	s.Equal("ABC123", publisher.published[1].TxHash)
}

func (s *ServiceSuite) TestReferrerForwardedAsAffiliate() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	registrar := &stubRegistrar{result: chain.BroadcastResult{Code: 0, TxHash: "TX"}}
	svc := s.newService(verifier, registrar)

	_, err := svc.Register(context.Background(), registration.Request{
		Address:    "secret1user",
		IDImage:    "aGVsbG8=",
		ReferredBy: "secret1friend",
	})
	s.Require().NoError(err)
	s.Require().NotNil(registrar.gotMsg.Affiliate)
	s.Equal("secret1friend", *registrar.gotMsg.Affiliate)
}

func (s *ServiceSuite) TestOnChainRejectionCountsNothingFurther() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	registrar := &stubRegistrar{result: chain.BroadcastResult{Code: 7, TxHash: "TX", RawLog: "duplicate id_hash"}}
	publisher := &recordingPublisher{}
	svc := s.newService(verifier, registrar, registration.WithEvents(publisher))

	_, err := svc.Register(context.Background(), registration.Request{
		Address: "secret1user",
		IDImage: "aGVsbG8=",
	})
	s.Require().Error(err)

	var cerr *registration.ChainRejectionError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(uint32(7), cerr.Response.Code)
	s.Equal("duplicate id_hash", cerr.Response.RawLog)

	snap := s.latest()
	s.Equal(int64(1), snap.Verifications, "verification passed before the chain rejected")
	s.Zero(snap.Registrations)
	s.Zero(snap.Rejections)

	s.Require().Len(publisher.published, 2)
	s.Equal(events.TypeChainFailed, publisher.published[1].Type)
	s.Equal(uint32(7), publisher.published[1].Code)
}

func (s *ServiceSuite) TestBroadcastTransportErrorIsInternal() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	registrar := &stubRegistrar{err: context.DeadlineExceeded}
	svc := s.newService(verifier, registrar)

	_, err := svc.Register(context.Background(), registration.Request{
		Address: "secret1user",
		IDImage: "aGVsbG8=",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	snap := s.latest()
	s.Equal(int64(1), snap.Verifications)
	s.Zero(snap.Registrations)
}

func (s *ServiceSuite) TestRepeatedRegistrationsAccumulate() {
	verifier := &stubVerifier{verdict: passingVerdict()}
	registrar := &stubRegistrar{result: chain.BroadcastResult{Code: 0, TxHash: "TX"}}
	svc := s.newService(verifier, registrar)

	for i := 0; i < 3; i++ {
		_, err := svc.Register(context.Background(), registration.Request{
			Address: "secret1user",
			IDImage: "aGVsbG8=",
		})
		s.Require().NoError(err)
	}

	snap := s.latest()
	s.Equal(int64(3), snap.Registrations)
	s.Equal(int64(3), snap.Verifications)
}
