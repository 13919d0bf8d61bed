package order

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/cart"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockedService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewService(db, &config.Config{}), mock
}

func createInput() *CreateOrderInput {
	return &CreateOrderInput{
		Email: "customer@example.com",
		Items: []cart.CartLineResponse{
			{Name: "Classic Tee", UnitPrice: 500, Quantity: 2},
		},
		Quote: &pricing.Quote{
			FinalAmount: 1007,
			Breakdown:   pricing.Breakdown{Subtotal: 1000, ShippingCost: 60},
		},
		PaymentMethod: "cod",
		TransactionID: "jti-reload-1",
		ShippingAddress: Address{
			FirstName: "Asha",
			LastName:  "Rao",
			Phone:     "+919876543210",
		},
	}
}

func TestCreateOrder_ReloadFailureReturnsCommittedOrder(t *testing.T) {
	svc, mock := newMockedService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(`UPDATE "orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "order_status_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	// The order is committed; only the snapshot reload fails.
	mock.ExpectQuery(`SELECT (.+) FROM "orders"`).
		WillReturnError(errors.New("connection reset by peer"))

	created, err := svc.CreateOrder(createInput())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, uint(42), created.ID)
	assert.NotEmpty(t, created.OrderNumber)
	assert.Equal(t, int64(1007), created.TotalAmount)
	assert.Equal(t, "jti-reload-1", created.TransactionID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_RejectsEmptyItems(t *testing.T) {
	svc, _ := newMockedService(t)

	input := createInput()
	input.Items = nil

	_, err := svc.CreateOrder(input)
	assert.Error(t, err)
}

func TestCreateOrder_RejectsMissingQuote(t *testing.T) {
	svc, _ := newMockedService(t)

	input := createInput()
	input.Quote = nil

	_, err := svc.CreateOrder(input)
	assert.Error(t, err)
}
