package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-backend/internal/domain/cart"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"github.com/your-org/checkout-backend/internal/domain/user"
)

type stubCreator struct {
	byTransaction map[string]*Order
	created       []*Order
	createErr     error
	nextID        uint
}

func newStubCreator() *stubCreator {
	return &stubCreator{byTransaction: map[string]*Order{}, nextID: 100}
}

func (s *stubCreator) CreateOrder(input *CreateOrderInput) (*Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	o := &Order{
		ID:             s.nextID,
		OrderNumber:    "ORD-20260831-00101",
		UserID:         input.UserID,
		Email:          input.Email,
		TotalAmount:    input.Quote.FinalAmount,
		PaymentMethod:  input.PaymentMethod,
		TransactionID:  input.TransactionID,
		AccountOutcome: input.AccountOutcome,
		Currency:       "INR",
	}
	for range input.Items {
		o.Items = append(o.Items, OrderItem{})
	}
	s.created = append(s.created, o)
	s.byTransaction[input.TransactionID] = o
	return o, nil
}

func (s *stubCreator) FindByTransactionID(transactionID string) (*Order, error) {
	if o, ok := s.byTransaction[transactionID]; ok {
		return o, nil
	}
	return nil, ErrOrderNotFound
}

type stubAccounts struct {
	existing map[string]*user.User
	err      error
	created  []string
}

func (s *stubAccounts) EnsureAccountForOrder(email, firstName, lastName, phone string) (*user.User, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if u, ok := s.existing[email]; ok {
		return u, false, nil
	}
	s.created = append(s.created, email)
	return &user.User{ID: 55, Email: email}, true, nil
}

type stubCarts struct {
	mu          sync.Mutex
	clears      int
	lastUser    *uint
	lastSession string
	err         error
}

func (s *stubCarts) ClearCart(_ context.Context, userID *uint, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.lastUser = userID
	s.lastSession = sessionID
	return s.err
}

type stubMailer struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubMailer) SendOrderConfirmation(o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, o.OrderNumber)
	return nil
}

func (s *stubMailer) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func finalizeDraft(txID string) *CreateOrderInput {
	return &CreateOrderInput{
		Email:         "customer@example.com",
		Items:         []cart.CartLineResponse{{Name: "Classic Tee", UnitPrice: 500, Quantity: 2}},
		Quote:         &pricing.Quote{FinalAmount: 1007},
		TransactionID: txID,
		ShippingAddress: Address{
			FirstName: "Asha",
			LastName:  "Rao",
			Phone:     "+919876543210",
		},
	}
}

func TestFinalize_GuestGetsAccountCreated(t *testing.T) {
	creator := newStubCreator()
	accounts := &stubAccounts{existing: map[string]*user.User{}}
	carts := &stubCarts{}
	f := NewFinalizer(creator, accounts, carts, nil)

	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:     finalizeDraft("tx-1"),
		SessionID: "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, AccountCreated, conf.AccountOutcome)
	assert.True(t, conf.AutoAccountCreated)
	assert.False(t, conf.ExistingAccountLinked)
	require.Len(t, creator.created, 1)
	require.NotNil(t, creator.created[0].UserID)
	assert.Equal(t, uint(55), *creator.created[0].UserID)
}

func TestFinalize_GuestLinksExistingAccount(t *testing.T) {
	creator := newStubCreator()
	accounts := &stubAccounts{existing: map[string]*user.User{
		"customer@example.com": {ID: 12, Email: "customer@example.com"},
	}}
	f := NewFinalizer(creator, accounts, &stubCarts{}, nil)

	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-2"),
	})

	require.NoError(t, err)
	assert.Equal(t, AccountLinked, conf.AccountOutcome)
	assert.False(t, conf.AutoAccountCreated)
	assert.True(t, conf.ExistingAccountLinked)
}

func TestFinalize_AuthenticatedUserNoAccountChange(t *testing.T) {
	creator := newStubCreator()
	accounts := &stubAccounts{existing: map[string]*user.User{}}
	f := NewFinalizer(creator, accounts, &stubCarts{}, nil)

	userID := uint(7)
	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:               finalizeDraft("tx-3"),
		AuthenticatedUserID: &userID,
	})

	require.NoError(t, err)
	assert.Equal(t, NoAccountChange, conf.AccountOutcome)
	assert.Empty(t, accounts.created)
}

func TestFinalize_AccountFailureStillCreatesGuestOrder(t *testing.T) {
	creator := newStubCreator()
	accounts := &stubAccounts{err: errors.New("users table locked")}
	f := NewFinalizer(creator, accounts, &stubCarts{}, nil)

	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-4"),
	})

	require.NoError(t, err)
	assert.Equal(t, NoAccountChange, conf.AccountOutcome)
	require.Len(t, creator.created, 1)
	assert.Nil(t, creator.created[0].UserID)
}

func TestFinalize_ClearsCartAfterOrderCreated(t *testing.T) {
	creator := newStubCreator()
	carts := &stubCarts{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	_, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:     finalizeDraft("tx-5"),
		SessionID: "sess-5",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, carts.clears)
}

func TestFinalize_GuestCartClearedUnderSessionIdentity(t *testing.T) {
	creator := newStubCreator()
	// Account resolution succeeds and assigns the order to a new account
	accounts := &stubAccounts{existing: map[string]*user.User{}}
	carts := &stubCarts{}
	f := NewFinalizer(creator, accounts, carts, nil)

	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:     finalizeDraft("tx-11"),
		SessionID: "sess-guest-1",
	})

	require.NoError(t, err)
	assert.Equal(t, AccountCreated, conf.AccountOutcome)

	// The cart was filled as a guest session, so the clear must target
	// the session, not the account that was just created.
	require.Equal(t, 1, carts.clears)
	assert.Nil(t, carts.lastUser)
	assert.Equal(t, "sess-guest-1", carts.lastSession)
}

func TestFinalize_AuthenticatedCartClearedUnderUserIdentity(t *testing.T) {
	creator := newStubCreator()
	carts := &stubCarts{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	userID := uint(7)
	_, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:               finalizeDraft("tx-12"),
		SessionID:           "sess-logged-in",
		AuthenticatedUserID: &userID,
	})

	require.NoError(t, err)
	require.Equal(t, 1, carts.clears)
	require.NotNil(t, carts.lastUser)
	assert.Equal(t, uint(7), *carts.lastUser)
}

func TestFinalize_BuyNowLeavesCartAlone(t *testing.T) {
	creator := newStubCreator()
	carts := &stubCarts{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	_, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft:  finalizeDraft("tx-6"),
		BuyNow: true,
	})

	require.NoError(t, err)
	assert.Zero(t, carts.clears)
}

func TestFinalize_CartClearFailureDoesNotFailOrder(t *testing.T) {
	creator := newStubCreator()
	carts := &stubCarts{err: errors.New("redis down")}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	conf, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-7"),
	})

	require.NoError(t, err)
	assert.NotZero(t, conf.OrderID)
}

func TestFinalize_CreateFailureDoesNotClearCart(t *testing.T) {
	creator := newStubCreator()
	creator.createErr = errors.New("database unavailable")
	carts := &stubCarts{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	_, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-8"),
	})

	require.Error(t, err)
	assert.Zero(t, carts.clears)
}

func TestFinalize_ReplayReturnsExistingOrder(t *testing.T) {
	creator := newStubCreator()
	carts := &stubCarts{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, carts, nil)

	first, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-9"),
	})
	require.NoError(t, err)

	second, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-9"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, creator.created, 1)
	// Replay must not clear the cart again
	assert.Equal(t, 1, carts.clears)
}

func TestFinalize_SendsConfirmationEmail(t *testing.T) {
	creator := newStubCreator()
	mailer := &stubMailer{}
	f := NewFinalizer(creator, &stubAccounts{existing: map[string]*user.User{}}, &stubCarts{}, mailer)

	_, err := f.Finalize(context.Background(), &FinalizeInput{
		Draft: finalizeDraft("tx-10"),
	})
	require.NoError(t, err)

	// Email goes out asynchronously
	require.Eventually(t, func() bool {
		return mailer.sentCount() == 1
	}, time.Second, 10*time.Millisecond)
}
