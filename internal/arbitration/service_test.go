package arbitration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

const (
	arbiter = domain.Address("arbiter")
	carol   = domain.Address("carol")
)

var panel = []domain.Address{"cosigner-1", "cosigner-2", "cosigner-3"}

type ArbitrationServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
}

func TestArbitrationServiceSuite(t *testing.T) {
	suite.Run(t, new(ArbitrationServiceSuite))
}

func (s *ArbitrationServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.service = NewService(s.store)
}

func (s *ArbitrationServiceSuite) actingAs(addr domain.Address) context.Context {
	return requestcontext.WithActingAs(context.Background(), addr)
}

func (s *ArbitrationServiceSuite) createPanel(approvals uint32) {
	s.T().Helper()
	_, err := s.service.CreateArbitration(s.actingAs(arbiter), arbiter, panel, approvals)
	s.Require().NoError(err)
}

func (s *ArbitrationServiceSuite) TestCreateArbitration() {
	s.Run("creates and reads back", func() {
		config, err := s.service.CreateArbitration(s.actingAs(arbiter), arbiter, panel, 2)
		s.Require().NoError(err)
		s.Equal(uint32(2), config.Approvals)

		got, err := s.service.Config(context.Background(), arbiter)
		s.Require().NoError(err)
		s.Equal(config, got)
	})

	s.Run("only the arbiter may create their panel", func() {
		_, err := s.service.CreateArbitration(s.actingAs("mallory"), arbiter, panel, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("empty panel rejected", func() {
		_, err := s.service.CreateArbitration(s.actingAs(arbiter), arbiter, nil, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("zero approvals rejected", func() {
		_, err := s.service.CreateArbitration(s.actingAs(arbiter), arbiter, panel, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("threshold above the panel size rejected", func() {
		_, err := s.service.CreateArbitration(s.actingAs(arbiter), arbiter, panel, 4)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ArbitrationServiceSuite) TestSign() {
	s.createPanel(2)

	s.Run("unknown arbiter is not found", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", "nobody", carol, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-member rejected", func() {
		_, err := s.service.Sign(s.actingAs("mallory"), "mallory", arbiter, carol, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("cosigner must sign as themselves", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-2"), "cosigner-1", arbiter, carol, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("signatures accumulate per decision", func() {
		event, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 0)
		s.Require().NoError(err)
		s.Len(event.Signatures, 1)

		// A different receipt is a separate decision.
		event, err = s.service.Sign(s.actingAs("cosigner-2"), "cosigner-2", arbiter, carol, 1)
		s.Require().NoError(err)
		s.Len(event.Signatures, 1)
	})

	s.Run("duplicate signature is idempotent", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 2)
		s.Require().NoError(err)
		event, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 2)
		s.Require().NoError(err)
		s.Len(event.Signatures, 1)
	})
}

func (s *ArbitrationServiceSuite) TestAuthorized() {
	s.createPanel(2)

	s.Run("no signatures yet", func() {
		ok, err := s.service.Authorized(context.Background(), arbiter, carol, 0)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("below threshold", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 0)
		s.Require().NoError(err)
		ok, err := s.service.Authorized(context.Background(), arbiter, carol, 0)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("at threshold", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-2"), "cosigner-2", arbiter, carol, 0)
		s.Require().NoError(err)
		ok, err := s.service.Authorized(context.Background(), arbiter, carol, 0)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("duplicate signatures never reach the threshold alone", func() {
		for i := 0; i < 3; i++ {
			_, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 5)
			s.Require().NoError(err)
		}
		ok, err := s.service.Authorized(context.Background(), arbiter, carol, 5)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("signatures from a replaced panel stop counting", func() {
		_, err := s.service.Sign(s.actingAs("cosigner-1"), "cosigner-1", arbiter, carol, 7)
		s.Require().NoError(err)
		_, err = s.service.Sign(s.actingAs("cosigner-2"), "cosigner-2", arbiter, carol, 7)
		s.Require().NoError(err)

		_, err = s.service.CreateArbitration(s.actingAs(arbiter), arbiter, []domain.Address{"cosigner-3"}, 1)
		s.Require().NoError(err)

		ok, err := s.service.Authorized(context.Background(), arbiter, carol, 7)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown arbiter errors", func() {
		_, err := s.service.Authorized(context.Background(), "nobody", carol, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
