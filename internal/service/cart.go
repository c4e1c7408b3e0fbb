package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
)

// CartService keeps per-user carts in memory and publishes a domain event for
// every mutation so paired observers can mirror the cart live.
type CartService struct {
	mu        sync.Mutex
	carts     map[string][]model.CartItem
	catalog   *CatalogService
	publisher EventPublisher
}

func NewCartService(catalog *CatalogService, publisher EventPublisher) *CartService {
	return &CartService{
		carts:     make(map[string][]model.CartItem),
		catalog:   catalog,
		publisher: publisher,
	}
}

type AddToCartInput struct {
	UserID    string `json:"userId"`
	SourceID  string `json:"sourceId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartSummary struct {
	UserID      string           `json:"userId"`
	Items       []model.CartItem `json:"cartItems"`
	TotalAmount float64          `json:"totalAmount"`
	TotalItems  int              `json:"totalItems"`
}

func (s *CartService) AddToCart(ctx context.Context, in AddToCartInput) (*CartSummary, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperrors.MissingRequired("userId")
	}
	if in.Quantity <= 0 {
		return nil, apperrors.InvalidRequest("quantity must be positive")
	}

	product, ok := s.catalog.Product(in.ProductID)
	if !ok {
		return nil, apperrors.NotFound("Product")
	}
	if !s.catalog.Available(in.ProductID, in.Quantity) {
		return nil, apperrors.InvalidRequest("Insufficient stock available")
	}

	s.mu.Lock()
	cart := s.carts[in.UserID]

	merged := false
	for i := range cart {
		if cart[i].ProductID == in.ProductID {
			cart[i].Quantity += in.Quantity
			cart[i].Subtotal = product.Price * float64(cart[i].Quantity)
			merged = true
			break
		}
	}
	if !merged {
		cart = append(cart, model.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    in.Quantity,
			Subtotal:    product.Price * float64(in.Quantity),
		})
	}
	s.carts[in.UserID] = cart

	summary := s.summarizeLocked(in.UserID)
	s.mu.Unlock()

	s.publishCartEvent(ctx, model.EventCartItemAdded, in.SourceID, summary)

	log.Info().
		Str("userId", in.UserID).
		Int64("productId", in.ProductID).
		Int("quantity", in.Quantity).
		Msg("product added to cart")
	return summary, nil
}

func (s *CartService) Cart(userID string) *CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summarizeLocked(userID)
}

func (s *CartService) ClearCart(userID string) {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()

	log.Info().Str("userId", userID).Msg("cart cleared")
}

type CheckoutResult struct {
	OrderID     string  `json:"orderId"`
	UserID      string  `json:"userId"`
	TotalAmount float64 `json:"totalAmount"`
	OrderStatus string  `json:"orderStatus"`
}

func (s *CartService) Checkout(ctx context.Context, userID, sourceID string) (*CheckoutResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.MissingRequired("userId")
	}

	s.mu.Lock()
	cart := s.carts[userID]
	if len(cart) == 0 {
		s.mu.Unlock()
		return nil, apperrors.InvalidRequest("Cart is empty")
	}

	summary := s.summarizeLocked(userID)
	delete(s.carts, userID)
	s.mu.Unlock()

	orderID := "ORD-" + strings.ToUpper(uuid.NewString()[:8])

	event := model.NewDomainEvent(model.EventCheckoutCompleted, sourceID)
	event.UserID = userID
	event.CartItems = summary.Items
	event.TotalAmount = &summary.TotalAmount
	event.TotalItems = &summary.TotalItems
	event.Message = "Order " + orderID + " placed successfully"
	if err := s.publisher.Publish(ctx, redisclient.CheckoutEventsChannel, event); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to publish checkout event")
	}

	log.Info().
		Str("userId", userID).
		Str("orderId", orderID).
		Float64("totalAmount", summary.TotalAmount).
		Msg("checkout completed")

	return &CheckoutResult{
		OrderID:     orderID,
		UserID:      userID,
		TotalAmount: summary.TotalAmount,
		OrderStatus: "CONFIRMED",
	}, nil
}

func (s *CartService) summarizeLocked(userID string) *CartSummary {
	cart := s.carts[userID]

	items := make([]model.CartItem, len(cart))
	copy(items, cart)

	var totalAmount float64
	var totalItems int
	for _, item := range items {
		totalAmount += item.Subtotal
		totalItems += item.Quantity
	}

	return &CartSummary{
		UserID:      userID,
		Items:       items,
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
	}
}

func (s *CartService) publishCartEvent(ctx context.Context, eventType model.EventType, sourceID string, summary *CartSummary) {
	if strings.TrimSpace(sourceID) == "" {
		return
	}

	event := model.NewDomainEvent(eventType, sourceID)
	event.UserID = summary.UserID
	event.CartItems = summary.Items
	event.TotalAmount = &summary.TotalAmount
	event.TotalItems = &summary.TotalItems

	if err := s.publisher.Publish(ctx, redisclient.CartEventsChannel, event); err != nil {
		log.Error().Err(err).Str("userId", summary.UserID).Msg("failed to publish cart event")
	}
}
