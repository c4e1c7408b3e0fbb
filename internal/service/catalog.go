package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/model"
	redisclient "github.com/gfd-sse/off2on-bridge-go/internal/redis"
)

// CatalogService holds the in-memory product list consulted by the cart.
type CatalogService struct {
	mu        sync.RWMutex
	products  map[int64]model.Product
	publisher EventPublisher
}

func NewCatalogService(publisher EventPublisher) *CatalogService {
	s := &CatalogService{
		products:  make(map[int64]model.Product),
		publisher: publisher,
	}
	s.seed()
	return s
}

func (s *CatalogService) seed() {
	for _, p := range []model.Product{
		{ID: 1, Name: "Laptop", Description: "High-performance laptop for professionals", Price: 999.99, Category: "Electronics", StockQuantity: 50, ImageURL: "https://example.com/laptop.jpg"},
		{ID: 2, Name: "Wireless Mouse", Description: "Ergonomic wireless mouse with precision tracking", Price: 29.99, Category: "Electronics", StockQuantity: 200, ImageURL: "https://example.com/mouse.jpg"},
		{ID: 3, Name: "Mechanical Keyboard", Description: "RGB mechanical keyboard with blue switches", Price: 89.99, Category: "Electronics", StockQuantity: 100, ImageURL: "https://example.com/keyboard.jpg"},
		{ID: 4, Name: "USB-C Hub", Description: "Multi-port USB-C hub with HDMI and USB 3.0", Price: 49.99, Category: "Accessories", StockQuantity: 150, ImageURL: "https://example.com/usb-hub.jpg"},
		{ID: 5, Name: "Noise Cancelling Headphones", Description: "Premium wireless headphones with active noise cancellation", Price: 249.99, Category: "Audio", StockQuantity: 75, ImageURL: "https://example.com/headphones.jpg"},
	} {
		s.products[p.ID] = p
	}
}

func (s *CatalogService) Products() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (s *CatalogService) ProductsByCategory(category string) []model.Product {
	var filtered []model.Product
	for _, p := range s.Products() {
		if strings.EqualFold(p.Category, category) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Product looks a product up without side effects.
func (s *CatalogService) Product(productID int64) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p, ok
}

// ViewProduct looks a product up and publishes a PRODUCT_VIEWED event when
// the caller identified its source device.
func (s *CatalogService) ViewProduct(ctx context.Context, productID int64, sourceID, userID string) (model.Product, bool) {
	p, ok := s.Product(productID)
	if !ok {
		return model.Product{}, false
	}

	if strings.TrimSpace(sourceID) != "" {
		event := model.NewDomainEvent(model.EventProductViewed, sourceID)
		event.UserID = userID
		event.Message = p.Name

		if err := s.publisher.Publish(ctx, redisclient.ProductEventsChannel, event); err != nil {
			log.Error().Err(err).Int64("productId", productID).Msg("failed to publish product viewed event")
		}
	}

	return p, true
}

func (s *CatalogService) Available(productID int64, quantity int) bool {
	p, ok := s.Product(productID)
	if !ok {
		return false
	}
	return p.StockQuantity >= quantity
}
