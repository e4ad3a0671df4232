package orders_test

import (
	"context"
	"sort"
	"sync"

	"github.com/safar/orderdesk/internal/database"
	"github.com/safar/orderdesk/internal/models"
	"github.com/safar/orderdesk/internal/store"
)

// memoryRepository serializes Update calls the way the row lock does in
// postgres.
type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	orders map[string]*models.Order
	// failWith, when set, is returned by Insert and Update.
	failWith error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{orders: make(map[string]*models.Order)}
}

func (r *memoryRepository) Insert(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.orders[order.OrderID]; ok {
		return database.ErrDuplicateOrderID
	}
	r.nextID++
	order.ID = r.nextID
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
	}
	r.orders[order.OrderID] = order.Clone()
	return nil
}

func (r *memoryRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *memoryRepository) FindByOrderIDForUser(ctx context.Context, orderID string, userID int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, database.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *memoryRepository) Update(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return nil, r.failWith
	}
	o, ok := r.orders[orderID]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	working := o.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version++
	r.orders[orderID] = working.Clone()
	return working, nil
}

func (r *memoryRepository) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return &store.CursorPage{Items: out, HasMore: hasMore}, nil
}

func (r *memoryRepository) List(ctx context.Context, filter store.ListFilter) (*store.OffsetPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Order
	for _, o := range r.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, *o.Clone())
		}
	}
	return &store.OffsetPage{Items: out, Total: int64(len(out)), Page: filter.Page, PageSize: filter.PageSize, TotalPages: 1}, nil
}

func (r *memoryRepository) put(o *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderID] = o.Clone()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.OrderEvent(nil), n.events...)
}

type stubCatalogue struct {
	products map[int64]models.Product
	err      error
	calls    [][]int64
}

func (c *stubCatalogue) Resolve(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	c.calls = append(c.calls, ids)
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[int64]models.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
