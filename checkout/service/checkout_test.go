package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/commercelab/storefront/checkout/pkg/request"
	"github.com/commercelab/storefront/internal/config"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/payment"
	"github.com/commercelab/storefront/internal/repository"
)

// fakeProvider is an in-memory stand-in for the hosted checkout. Tests flip
// the reported status to drive reconciliation.
type fakeProvider struct {
	lastSessionID string
	status        payment.SessionStatus
	statusErr     error
}

func (f *fakeProvider) CreateCheckoutSession(
	c context.Context,
	param payment.CreateSessionParams,
) (payment.Session, error) {
	f.lastSessionID = "cs_test_" + uuid.NewString()
	return payment.Session{
		ID:          f.lastSessionID,
		RedirectURL: "https://pay.example.com/" + f.lastSessionID,
	}, nil
}

func (f *fakeProvider) GetSessionStatus(
	c context.Context,
	providerSessionID string,
) (payment.SessionStatus, error) {
	if f.statusErr != nil {
		return payment.SessionStatus{}, f.statusErr
	}
	return f.status, nil
}

type checkoutFixture struct {
	service  CheckoutService
	provider *fakeProvider
	queries  *repository.Queries
	pool     *pgxpool.Pool
	cache    *redis.Client
}

func setupCheckoutService(t *testing.T) checkoutFixture {
	t.Helper()
	c := context.Background()

	pgContainer, err := tcpostgres.Run(c,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(c); err != nil {
			t.Logf("failed terminating postgres container: %s", err)
		}
	})

	dbURL, err := pgContainer.ConnectionString(c, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)
	poolConfig.AfterConnect = func(c context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(c, poolConfig)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	require.NoError(t, err)
	migration, err := migrate.NewWithDatabaseInstance("file://../../../migrations", dbURL, driver)
	require.NoError(t, err)
	require.NoError(t, migration.Up())

	redisContainer, err := tcredis.Run(c, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(c); err != nil {
			t.Logf("failed terminating redis container: %s", err)
		}
	})
	redisURL, err := redisContainer.ConnectionString(c)
	require.NoError(t, err)
	redisOptions, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	cache := redis.NewClient(redisOptions)
	t.Cleanup(func() { cache.Close() })

	provider := &fakeProvider{status: payment.SessionStatus{
		Status:        payment.SessionStatusOpen,
		PaymentStatus: payment.PaymentStatusUnpaid,
	}}
	queries := repository.New(pool)
	svc := NewCheckoutService(pool, queries, cache, provider, config.Payment{
		Currency:   "usd",
		SuccessURL: "http://localhost:3000/success",
		CancelURL:  "http://localhost:3000/cancel",
		Timeout:    5 * time.Second,
	})

	return checkoutFixture{
		service:  svc,
		provider: provider,
		queries:  queries,
		pool:     pool,
		cache:    cache,
	}
}

func (f checkoutFixture) seedCart(
	t *testing.T,
	owner string,
	price string,
	quantity int32,
	stock int32,
) repository.Product {
	t.Helper()
	c := context.Background()
	product, err := f.queries.InsertProduct(c, repository.InsertProductParams{
		Name:        "Mechanical Keyboard",
		Description: "Tenkeyless mechanical keyboard with hot-swap switches",
		Price:       repository.NumericFromDecimal(decimal.RequireFromString(price)),
		Category:    "Electronics",
		ImageUrl:    "https://images.example.com/keyboard.jpg",
		Stock:       stock,
	})
	require.NoError(t, err)

	cart, err := f.queries.UpsertCart(c, owner)
	require.NoError(t, err)
	_, err = f.queries.UpsertCartItem(c, repository.UpsertCartItemParams{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
	})
	require.NoError(t, err)
	return product
}

func TestCreateSessionEmptyCart(t *testing.T) {
	f := setupCheckoutService(t)
	id := identity.FromSession(uuid.NewString())

	_, err := f.service.CreateSession(context.Background(), id, request.CreateSession{})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrEmptyCart)
}

func TestCreateSessionSnapshotsCart(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	f.seedCart(t, id.Owner(), "25.50", 2, 10)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)
	assert.Equal(t, f.provider.lastSessionID, session.ProviderSessionID)
	assert.NotEmpty(t, session.RedirectURL)
	assert.Equal(t, "initiated", session.Status)
	assert.True(t, session.Amount.Equal(decimal.RequireFromString("51")),
		"expected amount 51, got %s", session.Amount)
}

func TestCreateSessionRejectsOutOfStockLine(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "25.50", 2, 10)

	// Stock runs out after the item was added but before checkout.
	_, err := f.pool.Exec(c, "UPDATE products SET stock = 0 WHERE id = $1", product.ID)
	require.NoError(t, err)

	_, err = f.service.CreateSession(c, id, request.CreateSession{})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrOutOfStock)
	assert.Contains(t, err.Error(), "Mechanical Keyboard")

	// The provider was never called and nothing was persisted.
	assert.Empty(t, f.provider.lastSessionID)
	var sessions int
	require.NoError(t, f.pool.
		QueryRow(c, "SELECT count(*) FROM checkout_sessions WHERE owner = $1", id.Owner()).
		Scan(&sessions))
	assert.Zero(t, sessions)
}

func TestCreateSessionChargesCurrentCatalogPrice(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "20.00", 2, 10)

	// Catalog price changes after the item went into the cart.
	_, err := f.pool.Exec(c, "UPDATE products SET price = 30.00 WHERE id = $1", product.ID)
	require.NoError(t, err)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)
	assert.True(t, session.Amount.Equal(decimal.RequireFromString("60")),
		"expected amount 60, got %s", session.Amount)

	f.provider.status = payment.SessionStatus{
		Status:        payment.SessionStatusComplete,
		PaymentStatus: payment.PaymentStatusPaid,
	}
	_, err = f.service.GetStatus(c, id, session.ProviderSessionID)
	require.NoError(t, err)

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, repository.DecimalFromNumeric(orders[0].TotalAmount).
		Equal(decimal.RequireFromString("60")))
}

func TestGetStatusUnknownSession(t *testing.T) {
	f := setupCheckoutService(t)

	_, err := f.service.GetStatus(
		context.Background(),
		identity.FromSession(uuid.NewString()),
		"cs_missing",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestGetStatusForeignSession(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	f.seedCart(t, id.Owner(), "10.00", 1, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	_, err = f.service.GetStatus(
		c,
		identity.FromSession(uuid.NewString()),
		session.ProviderSessionID,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestGetStatusPendingLeavesSessionInitiated(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	f.seedCart(t, id.Owner(), "10.00", 1, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	status, err := f.service.GetStatus(c, id, session.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, "initiated", status.Status)
	assert.Nil(t, status.OrderID)
}

func TestPaidReconciliationMaterializesOrder(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "25.50", 2, 10)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	f.provider.status = payment.SessionStatus{
		Status:        payment.SessionStatusComplete,
		PaymentStatus: payment.PaymentStatusPaid,
	}
	status, err := f.service.GetStatus(c, id, session.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, "paid", status.Status)
	require.NotNil(t, status.OrderID)

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, session.ProviderSessionID, orders[0].ProviderSessionID)
	assert.True(t, repository.DecimalFromNumeric(orders[0].TotalAmount).
		Equal(decimal.RequireFromString("51")))

	// Stock is decremented and the cart cleared.
	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(8), updated.Stock)

	cart, err := f.queries.FindCartByOwner(c, id.Owner())
	require.NoError(t, err)
	items, err := f.queries.FindCartItems(c, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPaidReplayIsIdempotent(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "10.00", 1, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	f.provider.status = payment.SessionStatus{
		Status:        payment.SessionStatusComplete,
		PaymentStatus: payment.PaymentStatusPaid,
	}
	first, err := f.service.GetStatus(c, id, session.ProviderSessionID)
	require.NoError(t, err)

	// Webhook delivering the same outcome after the poll already applied it.
	second, err := f.service.HandleProviderEvent(c, payment.Event{
		EventType:     payment.EventCheckoutCompleted,
		SessionID:     session.ProviderSessionID,
		PaymentStatus: payment.PaymentStatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.OrderID, second.OrderID)

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(4), updated.Stock, "stock must be decremented exactly once")
}

func TestExpiredSessionLeavesCartIntact(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "10.00", 2, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	status, err := f.service.HandleProviderEvent(c, payment.Event{
		EventType: payment.EventCheckoutExpired,
		SessionID: session.ProviderSessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, "expired", status.Status)
	assert.Nil(t, status.OrderID)

	cart, err := f.queries.FindCartByOwner(c, id.Owner())
	require.NoError(t, err)
	items, err := f.queries.FindCartItems(c, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(2), items[0].Quantity)

	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(5), updated.Stock)

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPaidEventForExpiredSessionIsRejected(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "10.00", 2, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	_, err = f.service.HandleProviderEvent(c, payment.Event{
		EventType: payment.EventCheckoutExpired,
		SessionID: session.ProviderSessionID,
	})
	require.NoError(t, err)

	// Money collected for a session we already settled as expired must never
	// materialize an order.
	_, err = f.service.HandleProviderEvent(c, payment.Event{
		EventType:     payment.EventCheckoutCompleted,
		SessionID:     session.ProviderSessionID,
		PaymentStatus: payment.PaymentStatusPaid,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrProviderError)

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	assert.Empty(t, orders)

	stored, err := f.queries.FindCheckoutSessionByProviderId(c, session.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, repository.CheckoutSessionStatusExpired, stored.Status)

	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(5), updated.Stock)
}

func TestWebhookUnknownSession(t *testing.T) {
	f := setupCheckoutService(t)

	_, err := f.service.HandleProviderEvent(context.Background(), payment.Event{
		EventType:     payment.EventCheckoutCompleted,
		SessionID:     "cs_unknown",
		PaymentStatus: payment.PaymentStatusPaid,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestPaidWithInsufficientStockFlagsReview(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "10.00", 2, 5)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	// Stock runs out between session creation and payment settlement.
	_, err = f.pool.Exec(c, "UPDATE products SET stock = 1 WHERE id = $1", product.ID)
	require.NoError(t, err)

	f.provider.status = payment.SessionStatus{
		Status:        payment.SessionStatusComplete,
		PaymentStatus: payment.PaymentStatusPaid,
	}
	status, err := f.service.GetStatus(c, id, session.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
	assert.True(t, status.NeedsReview)
	assert.Nil(t, status.OrderID)

	// No order, stock untouched, cart retained for the shopper to adjust.
	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	assert.Empty(t, orders)

	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), updated.Stock)

	cart, err := f.queries.FindCartByOwner(c, id.Owner())
	require.NoError(t, err)
	items, err := f.queries.FindCartItems(c, cart.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestConcurrentPaidReconciliationDecrementsOnce(t *testing.T) {
	f := setupCheckoutService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := f.seedCart(t, id.Owner(), "10.00", 1, 1)

	session, err := f.service.CreateSession(c, id, request.CreateSession{})
	require.NoError(t, err)

	f.provider.status = payment.SessionStatus{
		Status:        payment.SessionStatusComplete,
		PaymentStatus: payment.PaymentStatusPaid,
	}

	done := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := f.service.GetStatus(c, id, session.ProviderSessionID)
			done <- err
		}()
	}
	for range 2 {
		require.NoError(t, <-done)
	}

	orders, err := f.queries.FindOrdersByOwner(c, id.Owner())
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	updated, err := f.queries.FindProductById(c, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), updated.Stock)
}
