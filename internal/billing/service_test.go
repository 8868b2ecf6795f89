package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustline/internal/token"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

type BillingServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	bank    *token.MemoryBank
	service *Service
}

func TestBillingServiceSuite(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.bank = token.NewMemoryBank()
	s.service = NewService(s.store, s.bank)
}

func (s *BillingServiceSuite) actingAs(addr string) context.Context {
	return requestcontext.WithActingAs(context.Background(), domain.Address(addr))
}

const (
	alice = domain.Address("alice") // retainor
	bob   = domain.Address("bob")   // retainee
	usdc  = domain.Address("usdc")
	eurc  = domain.Address("eurc")
)

func (s *BillingServiceSuite) TestSubmitBill() {
	s.Run("fills the pending slot", func() {
		bill, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(100), "march retainer", "2026-03-31")
		s.Require().NoError(err)
		s.Equal(domain.NewAmount(100), bill.Amount)

		pending, err := s.service.ViewBill(context.Background(), alice, bob)
		s.Require().NoError(err)
		s.Require().NotNil(pending)
		s.Equal("march retainer", pending.Notes)
	})

	s.Run("second pending bill conflicts", func() {
		_, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(50), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("only the retainor may submit", func() {
		_, err := s.service.SubmitBill(s.actingAs("bob"), alice, bob, domain.NewAmount(50), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("negative amount rejected, zero allowed", func() {
		_, err := s.service.SubmitBill(s.actingAs("carol"), "carol", bob, domain.NewAmount(-1), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNegativeAmount))

		_, err = s.service.SubmitBill(s.actingAs("carol"), "carol", bob, domain.NewAmount(0), "", "")
		s.Require().NoError(err)
	})
}

func (s *BillingServiceSuite) TestSubmitBillTokenInference() {
	s.Run("single funded balance stamps the bill's token", func() {
		s.fundBank(alice, usdc, 1000)
		_, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(500), usdc)
		s.Require().NoError(err)

		bill, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(100), "", "")
		s.Require().NoError(err)
		s.Equal(usdc, bill.Token)
	})

	s.Run("no funded balance leaves the token zero", func() {
		bill, err := s.service.SubmitBill(s.actingAs("carol"), "carol", bob, domain.NewAmount(100), "", "")
		s.Require().NoError(err)
		s.True(bill.Token.IsZero())
	})

	s.Run("several funded tokens leave the token zero", func() {
		s.fundBank("dave", usdc, 100)
		s.fundBank("dave", eurc, 100)
		_, err := s.service.AddRetainerBalance(s.actingAs("dave"), "dave", bob, domain.NewAmount(50), usdc)
		s.Require().NoError(err)
		_, err = s.service.AddRetainerBalance(s.actingAs("dave"), "dave", bob, domain.NewAmount(50), eurc)
		s.Require().NoError(err)

		bill, err := s.service.SubmitBill(s.actingAs("dave"), "dave", bob, domain.NewAmount(10), "", "")
		s.Require().NoError(err)
		s.True(bill.Token.IsZero())
	})
}

func (s *BillingServiceSuite) TestUnsubmitBill() {
	s.Run("clears the pending slot", func() {
		_, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(100), "", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.UnsubmitBill(s.actingAs("alice"), alice, bob))

		pending, err := s.service.ViewBill(context.Background(), alice, bob)
		s.Require().NoError(err)
		s.Nil(pending)
	})

	s.Run("clearing an empty slot succeeds", func() {
		s.NoError(s.service.UnsubmitBill(s.actingAs("alice"), alice, bob))
	})

	s.Run("only the retainor may unsubmit", func() {
		err := s.service.UnsubmitBill(s.actingAs("bob"), alice, bob)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *BillingServiceSuite) TestResolveBill() {
	s.Run("submit then resolve lifecycle", func() {
		_, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(100), "march retainer", "2026-03-31")
		s.Require().NoError(err)

		receipt, index, err := s.service.ResolveBill(s.actingAs("bob"), alice, bob, StatusApproved, "paid via wire", "2026-04-02")
		s.Require().NoError(err)
		s.Equal(uint32(0), index)
		s.Equal(StatusApproved, receipt.Status)
		s.Equal("march retainer", receipt.Bill.Notes)
		s.Equal("paid via wire", receipt.Notes)

		// Slot is free again and the history advanced.
		pending, err := s.service.ViewBill(context.Background(), alice, bob)
		s.Require().NoError(err)
		s.Nil(pending)

		hi, err := s.service.HistoryIndex(context.Background(), alice, bob)
		s.Require().NoError(err)
		s.Equal(uint32(1), hi)
	})

	s.Run("no pending bill is not found", func() {
		_, _, err := s.service.ResolveBill(s.actingAs("bob"), alice, bob, StatusDenied, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("only the retainee may resolve", func() {
		_, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(100), "", "")
		s.Require().NoError(err)

		_, _, err = s.service.ResolveBill(s.actingAs("alice"), alice, bob, StatusApproved, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown status rejected", func() {
		_, _, err := s.service.ResolveBill(s.actingAs("bob"), alice, bob, ApprovalStatus("maybe"), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("approval does not debit the retainer balance", func() {
		s.fundBank("erin", usdc, 1000)
		_, err := s.service.AddRetainerBalance(s.actingAs("erin"), "erin", bob, domain.NewAmount(500), usdc)
		s.Require().NoError(err)

		_, err = s.service.SubmitBill(s.actingAs("erin"), "erin", bob, domain.NewAmount(200), "", "")
		s.Require().NoError(err)
		_, _, err = s.service.ResolveBill(s.actingAs("bob"), "erin", bob, StatusApproved, "", "")
		s.Require().NoError(err)

		balance, err := s.service.RetainerBalance(context.Background(), "erin", bob, usdc)
		s.Require().NoError(err)
		s.Require().NotNil(balance)
		s.Equal(domain.NewAmount(500), balance.Amount)
	})
}

func (s *BillingServiceSuite) TestReceiptHistory() {
	resolve := func(amount int64, notes string) {
		s.T().Helper()
		_, err := s.service.SubmitBill(s.actingAs("alice"), alice, bob, domain.NewAmount(amount), notes, "")
		s.Require().NoError(err)
		_, _, err = s.service.ResolveBill(s.actingAs("bob"), alice, bob, StatusApproved, "", "")
		s.Require().NoError(err)
	}

	resolve(10, "first")
	resolve(20, "second")
	resolve(30, "third")

	s.Run("indices are dense from zero", func() {
		first, err := s.service.ViewReceipt(context.Background(), alice, bob, 0)
		s.Require().NoError(err)
		s.Require().NotNil(first)
		s.Equal("first", first.Bill.Notes)

		missing, err := s.service.ViewReceipt(context.Background(), alice, bob, 3)
		s.Require().NoError(err)
		s.Nil(missing)
	})

	s.Run("history is most recent first", func() {
		receipts, err := s.service.ReceiptHistory(context.Background(), alice, bob, 2)
		s.Require().NoError(err)
		s.Require().Len(receipts, 2)
		s.Equal("third", receipts[0].Bill.Notes)
		s.Equal("second", receipts[1].Bill.Notes)
	})

	s.Run("limit zero returns everything", func() {
		receipts, err := s.service.ReceiptHistory(context.Background(), alice, bob, 0)
		s.Require().NoError(err)
		s.Len(receipts, 3)
	})

	s.Run("limit beyond history is clamped", func() {
		receipts, err := s.service.ReceiptHistory(context.Background(), alice, bob, 10)
		s.Require().NoError(err)
		s.Len(receipts, 3)
	})

	s.Run("empty history yields no receipts", func() {
		receipts, err := s.service.ReceiptHistory(context.Background(), "carol", bob, 0)
		s.Require().NoError(err)
		s.Empty(receipts)
	})

	s.Run("range is ascending and inclusive", func() {
		receipts, err := s.service.ReceiptHistoryRange(context.Background(), alice, bob, 1, 2)
		s.Require().NoError(err)
		s.Require().Len(receipts, 2)
		s.Equal("second", receipts[0].Bill.Notes)
		s.Equal("third", receipts[1].Bill.Notes)
	})

	s.Run("range skips missing indices", func() {
		receipts, err := s.service.ReceiptHistoryRange(context.Background(), alice, bob, 2, 9)
		s.Require().NoError(err)
		s.Len(receipts, 1)
	})
}

func (s *BillingServiceSuite) TestAddRetainerBalance() {
	s.Run("funding accumulates across calls", func() {
		s.fundBank(alice, usdc, 1000)
		first, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(300), usdc)
		s.Require().NoError(err)
		s.Equal(domain.NewAmount(300), first.Amount)

		second, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(200), usdc)
		s.Require().NoError(err)
		s.Equal(domain.NewAmount(500), second.Amount)

		// Value moved into the escrow account both times.
		held := s.bank.Balance(usdc, token.EscrowAccount)
		s.Equal(domain.NewAmount(500), held)
	})

	s.Run("retainee may fund under the default policy", func() {
		s.fundBank(bob, usdc, 100)
		_, err := s.service.AddRetainerBalance(s.actingAs("bob"), alice, bob, domain.NewAmount(100), usdc)
		s.NoError(err)
	})

	s.Run("third parties may never fund", func() {
		_, err := s.service.AddRetainerBalance(s.actingAs("mallory"), alice, bob, domain.NewAmount(10), usdc)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("negative amount rejected", func() {
		_, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(-5), usdc)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNegativeAmount))
	})

	s.Run("insufficient funder balance conflicts", func() {
		_, err := s.service.AddRetainerBalance(s.actingAs("carol"), "carol", bob, domain.NewAmount(10), usdc)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *BillingServiceSuite) TestFundingPolicy() {
	s.Run("retainor-only policy rejects the retainee", func() {
		svc := NewService(s.store, s.bank, WithFundingPolicy(FundByRetainor))
		s.fundBank(bob, usdc, 100)
		_, err := svc.AddRetainerBalance(s.actingAs("bob"), alice, bob, domain.NewAmount(10), usdc)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("retainee-only policy rejects the retainor", func() {
		svc := NewService(s.store, s.bank, WithFundingPolicy(FundByRetainee))
		s.fundBank(alice, usdc, 100)
		_, err := svc.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(10), usdc)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *BillingServiceSuite) TestRetainerBalanceLookup() {
	s.Run("never funded reads as nil", func() {
		balance, err := s.service.RetainerBalance(context.Background(), alice, bob, usdc)
		s.Require().NoError(err)
		s.Nil(balance)
	})

	s.Run("zero token resolves a single record", func() {
		s.fundBank(alice, usdc, 100)
		_, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(100), usdc)
		s.Require().NoError(err)

		balance, err := s.service.RetainerBalance(context.Background(), alice, bob, domain.ZeroAddress)
		s.Require().NoError(err)
		s.Require().NotNil(balance)
		s.Equal(usdc, balance.Token)
	})

	s.Run("zero token with several records must name one", func() {
		s.fundBank(alice, eurc, 100)
		_, err := s.service.AddRetainerBalance(s.actingAs("alice"), alice, bob, domain.NewAmount(100), eurc)
		s.Require().NoError(err)

		_, err = s.service.RetainerBalance(context.Background(), alice, bob, domain.ZeroAddress)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		balances, err := s.service.RetainerBalances(context.Background(), alice, bob)
		s.Require().NoError(err)
		s.Require().Len(balances, 2)
		s.Equal(eurc, balances[0].Token)
		s.Equal(usdc, balances[1].Token)
	})
}

func (s *BillingServiceSuite) fundBank(holder domain.Address, tok domain.Address, amount int64) {
	s.T().Helper()
	s.bank.Mint(tok, holder, domain.NewAmount(amount))
}
