package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound indicates no active product matched the requested code.
var ErrNotFound = errors.New("catalog: product not found")

// Source lists the read-only collections this terminal consumes.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service holds the in-memory catalog snapshot for a terminal. The backend
// owns inventory truth; this snapshot exists so scans and cart adds resolve
// without a network round trip.
type Service struct {
	source Source
	logger zerolog.Logger

	sf singleflight.Group

	mu         sync.RWMutex
	loaded     bool
	products   []Product
	customers  []Customer
	categories []Category
	byCode     map[string]int
	byID       map[string]int
}

// NewService constructs a catalog service around the provided source.
func NewService(source Source, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		logger: logger.With().Str("component", "catalog").Logger(),
		byCode: map[string]int{},
		byID:   map[string]int{},
	}
}

// Refresh reloads the snapshot from the backend. Concurrent callers share a
// single fetch via singleflight.
func (s *Service) Refresh(ctx context.Context) error {
	_, err, _ := s.sf.Do("refresh", func() (any, error) {
		products, err := s.source.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		customers, err := s.source.ListCustomers(ctx)
		if err != nil {
			return nil, err
		}
		categories, err := s.source.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		s.install(products, customers, categories)
		s.logger.Info().
			Int("products", len(products)).
			Int("customers", len(customers)).
			Int("categories", len(categories)).
			Msg("catalog snapshot refreshed")
		return nil, nil
	})
	return err
}

func (s *Service) install(products []Product, customers []Customer, categories []Category) {
	byCode := make(map[string]int, len(products)*2)
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
		if p.Status != StatusActive {
			continue
		}
		if code := strings.TrimSpace(p.Barcode); code != "" {
			byCode[code] = i
		}
		if code := strings.TrimSpace(p.SKU); code != "" {
			byCode[code] = i
		}
	}
	s.mu.Lock()
	s.loaded = true
	s.products = products
	s.customers = customers
	s.categories = categories
	s.byCode = byCode
	s.byID = byID
	s.mu.Unlock()
}

// Loaded reports whether a snapshot has been installed at least once.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// FindByCode resolves a trimmed barcode or SKU to an active product.
func (s *Service) FindByCode(code string) (Product, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Product{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byCode[trimmed]
	if !ok {
		return Product{}, ErrNotFound
	}
	return s.products[idx], nil
}

// ProductByID returns a product regardless of status.
func (s *Service) ProductByID(id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return s.products[idx], nil
}

// CustomerByID returns the customer record for the given id.
func (s *Service) CustomerByID(id string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.ID == id {
			return c, true
		}
	}
	return Customer{}, false
}

// Products returns a copy of the current product snapshot.
func (s *Service) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Customers returns a copy of the current customer snapshot.
func (s *Service) Customers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, len(s.customers))
	copy(out, s.customers)
	return out
}

// Categories returns a copy of the current category snapshot.
func (s *Service) Categories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, len(s.categories))
	copy(out, s.categories)
	return out
}
