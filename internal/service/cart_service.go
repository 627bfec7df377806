package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/redisclient"
	"storefront-gateway/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidQuantity rejects add requests below one item.
// Quantity updates below one are not an error; they redirect to removal.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// CartBackend is the slice of the backend API the cart service needs
type CartBackend interface {
	GetCart(ctx context.Context, token string) (*models.Cart, error)
	AddItem(ctx context.Context, token string, productID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, token string, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, token string, itemID int64) error
	ClearCart(ctx context.Context, token string) error
}

// CartCache is a read-through cache of the authoritative cart
type CartCache interface {
	GetCachedCart(ctx context.Context, userID int64) (*models.Cart, error)
	SetCachedCart(ctx context.Context, userID int64, cart *models.Cart) error
	InvalidateCart(ctx context.Context, userID int64) error
}

// CartService keeps the gateway's view of a user's cart converged to backend
// state. Every mutation is write-through followed by an authoritative refetch;
// the service never trusts its own optimistic state. Refetches carry a
// monotonic per-user sequence number so a response that arrives out of order
// cannot regress the cached view.
type CartService struct {
	backend CartBackend
	cache   CartCache
	logger  *zap.Logger
	sfg     singleflight.Group

	mu  sync.Mutex
	seq map[int64]uint64
}

// NewCartService creates a new cart service
func NewCartService(backend CartBackend, cache CartCache) *CartService {
	return &CartService{
		backend: backend,
		cache:   cache,
		logger:  util.NamedLogger("cart"),
		seq:     make(map[int64]uint64),
	}
}

// ComputeTotals derives the monetary view of a cart without mutating it.
// Only imported items contribute their shipping fee to the delivery total.
func ComputeTotals(items []models.CartItem) models.CartTotals {
	var t models.CartTotals
	for _, item := range items {
		t.Subtotal += item.Price * float64(item.Quantity)
		if item.Product.IsImported {
			t.DeliveryFee += item.Product.ShippingFee * float64(item.Quantity)
		}
		t.ItemCount += item.Quantity
	}
	t.Total = t.Subtotal + t.DeliveryFee
	return t
}

// GetCart returns the user's cart, served from cache when fresh. Concurrent
// misses for the same user are collapsed into one backend fetch.
func (s *CartService) GetCart(ctx context.Context, sess *models.Session) (*models.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(sess.UserID, 10), func() (interface{}, error) {
		cart, err := s.cache.GetCachedCart(ctx, sess.UserID)
		if err == nil {
			util.CartCacheHitsTotal.Inc()
			return cart, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			s.logger.Warn("Cart cache read failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		}

		util.CartCacheMissesTotal.Inc()
		return s.refresh(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Cart), nil
}

// AddItem adds a product to the cart and returns the refetched state
func (s *CartService) AddItem(ctx context.Context, sess *models.Session, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if err := s.backend.AddItem(ctx, sess.Token, productID, quantity); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()

	s.invalidate(ctx, sess.UserID)
	return s.refresh(ctx, sess)
}

// UpdateQuantity sets a cart item's quantity. A requested quantity below one
// redirects to removal rather than being rejected, so callers can never
// observe an item with quantity < 1.
func (s *CartService) UpdateQuantity(ctx context.Context, sess *models.Session, itemID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity < 1 {
		return s.RemoveItem(ctx, sess, itemID)
	}

	if err := s.backend.UpdateItemQuantity(ctx, sess.Token, itemID, quantity); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("update").Inc()

	s.invalidate(ctx, sess.UserID)
	return s.refresh(ctx, sess)
}

// RemoveItem deletes a cart item and returns the refetched state
func (s *CartService) RemoveItem(ctx context.Context, sess *models.Session, itemID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	if err := s.backend.RemoveItem(ctx, sess.Token, itemID); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("remove").Inc()

	s.invalidate(ctx, sess.UserID)
	return s.refresh(ctx, sess)
}

// Clear empties the cart and returns the refetched (empty) state
func (s *CartService) Clear(ctx context.Context, sess *models.Session) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	if err := s.backend.ClearCart(ctx, sess.Token); err != nil {
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()

	s.invalidate(ctx, sess.UserID)
	return s.refresh(ctx, sess)
}

// refresh fetches the authoritative cart and installs it into the cache
// unless a newer refetch was issued while this one was in flight.
func (s *CartService) refresh(ctx context.Context, sess *models.Session) (*models.Cart, error) {
	seq := s.nextSeq(sess.UserID)

	cart, err := s.backend.GetCart(ctx, sess.Token)
	if err != nil {
		return nil, err
	}

	if !s.isLatest(sess.UserID, seq) {
		util.CartRefetchDiscardedTotal.Inc()
		s.logger.Debug("Discarding stale cart refetch",
			zap.Int64("user_id", sess.UserID),
			zap.Uint64("seq", seq))
		return cart, nil
	}

	if err := s.cache.SetCachedCart(ctx, sess.UserID, cart); err != nil {
		s.logger.Warn("Cart cache write failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
	}
	return cart, nil
}

func (s *CartService) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.InvalidateCart(ctx, userID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) nextSeq(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[userID]++
	return s.seq[userID]
}

func (s *CartService) isLatest(userID int64, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq[userID] == seq
}
