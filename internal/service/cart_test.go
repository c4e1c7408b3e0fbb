package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
)

// Mock event publisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event *model.DomainEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func newCartFixture() (*CartService, *mockPublisher) {
	publisher := new(mockPublisher)
	catalog := NewCatalogService(publisher)
	return NewCartService(catalog, publisher), publisher
}

func TestCartService_AddToCart(t *testing.T) {
	ctx := context.Background()

	t.Run("adds a product and publishes a cart event", func(t *testing.T) {
		svc, publisher := newCartFixture()

		publisher.On("Publish", ctx, redisclient.CartEventsChannel, mock.MatchedBy(func(e *model.DomainEvent) bool {
			return e.EventType == model.EventCartItemAdded && e.SourceID == "src-1" && e.UserID == "user-1"
		})).Return(nil)

		summary, err := svc.AddToCart(ctx, AddToCartInput{
			UserID:    "user-1",
			SourceID:  "src-1",
			ProductID: 2,
			Quantity:  3,
		})

		assert.NoError(t, err)
		assert.NotNil(t, summary)
		assert.Len(t, summary.Items, 1)
		assert.Equal(t, "Wireless Mouse", summary.Items[0].ProductName)
		assert.Equal(t, 3, summary.TotalItems)
		assert.InDelta(t, 89.97, summary.TotalAmount, 0.001)
		publisher.AssertExpectations(t)
	})

	t.Run("merges quantity when the product is already in the cart", func(t *testing.T) {
		svc, publisher := newCartFixture()
		publisher.On("Publish", ctx, redisclient.CartEventsChannel, mock.Anything).Return(nil)

		_, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", SourceID: "src-1", ProductID: 2, Quantity: 2})
		assert.NoError(t, err)
		summary, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", SourceID: "src-1", ProductID: 2, Quantity: 3})
		assert.NoError(t, err)

		assert.Len(t, summary.Items, 1)
		assert.Equal(t, 5, summary.Items[0].Quantity)
		assert.InDelta(t, 149.95, summary.Items[0].Subtotal, 0.001)
	})

	t.Run("rejects unknown product", func(t *testing.T) {
		svc, _ := newCartFixture()

		summary, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", ProductID: 999, Quantity: 1})

		assert.Nil(t, summary)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("rejects quantity beyond available stock", func(t *testing.T) {
		svc, _ := newCartFixture()

		summary, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", ProductID: 1, Quantity: 51})

		assert.Nil(t, summary)
		assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.GetCode(err))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc, _ := newCartFixture()

		summary, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", ProductID: 1, Quantity: 0})

		assert.Nil(t, summary)
		assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.GetCode(err))
	})

	t.Run("skips publishing when no sourceId is attached", func(t *testing.T) {
		svc, publisher := newCartFixture()

		summary, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", ProductID: 2, Quantity: 1})

		assert.NoError(t, err)
		assert.NotNil(t, summary)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart cannot be checked out", func(t *testing.T) {
		svc, _ := newCartFixture()

		result, err := svc.Checkout(ctx, "user-1", "src-1")

		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.GetCode(err))
	})

	t.Run("checkout publishes completion event and clears the cart", func(t *testing.T) {
		svc, publisher := newCartFixture()
		publisher.On("Publish", ctx, redisclient.CartEventsChannel, mock.Anything).Return(nil)
		publisher.On("Publish", ctx, redisclient.CheckoutEventsChannel, mock.MatchedBy(func(e *model.DomainEvent) bool {
			return e.EventType == model.EventCheckoutCompleted &&
				e.SourceID == "src-1" &&
				e.TotalItems != nil && *e.TotalItems == 2
		})).Return(nil)

		_, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", SourceID: "src-1", ProductID: 3, Quantity: 2})
		assert.NoError(t, err)

		result, err := svc.Checkout(ctx, "user-1", "src-1")

		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.True(t, strings.HasPrefix(result.OrderID, "ORD-"))
		assert.Equal(t, "CONFIRMED", result.OrderStatus)
		assert.InDelta(t, 179.98, result.TotalAmount, 0.001)

		cart := svc.Cart("user-1")
		assert.Empty(t, cart.Items)
		publisher.AssertExpectations(t)
	})

	t.Run("rejects blank userId", func(t *testing.T) {
		svc, _ := newCartFixture()

		result, err := svc.Checkout(ctx, " ", "src-1")

		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}

func TestCartService_ClearCart(t *testing.T) {
	ctx := context.Background()

	t.Run("removes all items for the user", func(t *testing.T) {
		svc, publisher := newCartFixture()
		publisher.On("Publish", ctx, redisclient.CartEventsChannel, mock.Anything).Return(nil)

		_, err := svc.AddToCart(ctx, AddToCartInput{UserID: "user-1", SourceID: "src-1", ProductID: 4, Quantity: 1})
		assert.NoError(t, err)

		svc.ClearCart("user-1")

		cart := svc.Cart("user-1")
		assert.Empty(t, cart.Items)
		assert.Zero(t, cart.TotalItems)
	})
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds products sorted by id", func(t *testing.T) {
		catalog := NewCatalogService(new(mockPublisher))

		products := catalog.Products()

		assert.Len(t, products, 5)
		assert.Equal(t, "Laptop", products[0].Name)
		assert.Equal(t, "Noise Cancelling Headphones", products[4].Name)
	})

	t.Run("filters by category case-insensitively", func(t *testing.T) {
		catalog := NewCatalogService(new(mockPublisher))

		products := catalog.ProductsByCategory("electronics")

		assert.Len(t, products, 3)
	})

	t.Run("viewing a product with a sourceId publishes an event", func(t *testing.T) {
		publisher := new(mockPublisher)
		catalog := NewCatalogService(publisher)

		publisher.On("Publish", ctx, redisclient.ProductEventsChannel, mock.MatchedBy(func(e *model.DomainEvent) bool {
			return e.EventType == model.EventProductViewed && e.SourceID == "src-1" && e.Message == "Laptop"
		})).Return(nil)

		p, ok := catalog.ViewProduct(ctx, 1, "src-1", "user-1")

		assert.True(t, ok)
		assert.Equal(t, "Laptop", p.Name)
		publisher.AssertExpectations(t)
	})

	t.Run("viewing without a sourceId publishes nothing", func(t *testing.T) {
		publisher := new(mockPublisher)
		catalog := NewCatalogService(publisher)

		_, ok := catalog.ViewProduct(ctx, 1, "", "user-1")

		assert.True(t, ok)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stock availability check", func(t *testing.T) {
		catalog := NewCatalogService(new(mockPublisher))

		assert.True(t, catalog.Available(1, 50))
		assert.False(t, catalog.Available(1, 51))
		assert.False(t, catalog.Available(999, 1))
	})
}
