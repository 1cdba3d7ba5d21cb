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

	"github.com/commercelab/storefront/cart/pkg/request"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/repository"
)

func setupCartService(t *testing.T) (CartService, *repository.Queries) {
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

	queries := repository.New(pool)
	return NewCartService(pool, queries, cache), queries
}

func insertTestProduct(
	t *testing.T,
	queries *repository.Queries,
	price string,
	stock int32,
) repository.Product {
	t.Helper()
	product, err := queries.InsertProduct(context.Background(), repository.InsertProductParams{
		Name:        "Wireless Headphones",
		Description: "Premium noise-cancelling wireless headphones",
		Price:       repository.NumericFromDecimal(decimal.RequireFromString(price)),
		Category:    "Electronics",
		ImageUrl:    "https://images.example.com/headphones.jpg",
		Stock:       stock,
	})
	require.NoError(t, err)
	return product
}

func TestAddItemMergesQuantity(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "29.99", 10)

	_, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int32(5), cart.Items[0].Quantity)
	assert.Equal(t, int32(5), cart.ItemsCount)
	assert.True(t, cart.TotalAmount.Equal(decimal.RequireFromString("149.95")),
		"expected total 149.95, got %s", cart.TotalAmount)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _ := setupCartService(t)
	id := identity.FromSession(uuid.NewString())

	_, err := svc.AddItem(
		context.Background(),
		id,
		request.AddCartItem{ProductID: uuid.New(), Quantity: 1},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestAddItemOutOfStock(t *testing.T) {
	svc, queries := setupCartService(t)
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "9.99", 0)

	_, err := svc.AddItem(
		context.Background(),
		id,
		request.AddCartItem{ProductID: product.ID, Quantity: 1},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrOutOfStock)
}

func TestAddItemInsufficientStock(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "9.99", 3)

	_, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrInsufficientStock)
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "10.00", 10)

	cart, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(c, id, cart.Items[0].ID, request.UpdateCartItem{Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, int32(7), updated.Items[0].Quantity)
	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("70")))
}

func TestUpdateItemToZeroRemovesLine(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "10.00", 10)

	cart, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	emptied, err := svc.UpdateItem(c, id, cart.Items[0].ID, request.UpdateCartItem{Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)
	assert.Equal(t, int32(0), emptied.ItemsCount)
	assert.True(t, emptied.TotalAmount.IsZero())
}

func TestRemoveItem(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	id := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "10.00", 10)

	cart, err := svc.AddItem(c, id, request.AddCartItem{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	emptied, err := svc.RemoveItem(c, id, cart.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)
	assert.Equal(t, int32(0), emptied.ItemsCount)
	assert.True(t, emptied.TotalAmount.IsZero())
}

func TestRemoveAbsentItem(t *testing.T) {
	svc, _ := setupCartService(t)
	id := identity.FromSession(uuid.NewString())

	_, err := svc.RemoveItem(context.Background(), id, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestCartsAreScopedToOwner(t *testing.T) {
	svc, queries := setupCartService(t)
	c := context.Background()
	first := identity.FromSession(uuid.NewString())
	second := identity.FromSession(uuid.NewString())
	product := insertTestProduct(t, queries, "5.00", 10)

	cart, err := svc.AddItem(c, first, request.AddCartItem{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	other, err := svc.FindCart(c, second)
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	// The second owner cannot touch the first owner's line.
	_, err = svc.RemoveItem(c, second, cart.Items[0].ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}

func TestFindCartEmptyForNewOwner(t *testing.T) {
	svc, _ := setupCartService(t)

	cart, err := svc.FindCart(context.Background(), identity.FromSession(uuid.NewString()))
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int32(0), cart.ItemsCount)
	assert.True(t, cart.TotalAmount.IsZero())
}
