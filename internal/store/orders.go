package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/orderdesk/internal/database"
	"github.com/safar/orderdesk/internal/models"
)

const orderIDConstraint = "orders_order_id_key"

const orderColumns = `
	id, order_id, user_id, total_amount, discount_amount, coupon_code,
	shipping_name, shipping_email, shipping_phone, shipping_address,
	shipping_city, shipping_state, shipping_pincode, shipping_landmark,
	payment_method, payment_status, status, tracking_number,
	shipped_at, delivered_at, cancellation_reason, created_at, updated_at, version`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// OrderStore persists orders in postgres. Orders are never deleted.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Insert(ctx context.Context, order *models.Order) error {
	return database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		addr := order.ShippingAddress
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (
				order_id, user_id, total_amount, discount_amount, coupon_code,
				shipping_name, shipping_email, shipping_phone, shipping_address,
				shipping_city, shipping_state, shipping_pincode, shipping_landmark,
				payment_method, payment_status, status, tracking_number,
				shipped_at, delivered_at, cancellation_reason, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
			 RETURNING id`,
			order.OrderID, order.UserID, order.TotalAmount, order.DiscountAmount, order.CouponCode,
			addr.Name, addr.Email, addr.Phone, addr.Address,
			addr.City, addr.State, addr.Pincode, addr.Landmark,
			string(order.PaymentMethod), string(order.PaymentStatus), string(order.Status), order.TrackingNumber,
			order.ShippedAt, order.DeliveredAt, order.CancellationReason, order.CreatedAt, order.UpdatedAt, order.Version,
		).Scan(&order.ID)
		if err != nil {
			if database.IsUniqueViolation(err, orderIDConstraint) {
				return database.ErrDuplicateOrderID
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, position, product_id, quantity, price, size, image)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id`,
				order.ID, i, item.ProductID, item.Quantity, item.Price, item.Size, item.Image,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}

		return nil
	})
}

func (s *OrderStore) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return findOrder(ctx, s.db, `WHERE order_id = $1`, orderID)
}

// FindByOrderIDForUser returns ErrOrderNotFound for orders owned by someone
// else, so callers cannot probe foreign order ids.
func (s *OrderStore) FindByOrderIDForUser(ctx context.Context, orderID string, userID int64) (*models.Order, error) {
	return findOrder(ctx, s.db, `WHERE order_id = $1 AND user_id = $2`, orderID, userID)
}

// Update loads the order under a row lock, lets fn mutate it, and writes
// the mutable columns back. An error from fn aborts the transaction and is
// returned unchanged.
func (s *OrderStore) Update(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error) {
	var updated *models.Order

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := findOrder(ctx, tx, `WHERE order_id = $1 FOR UPDATE`, orderID)
		if err != nil {
			return err
		}

		if err := fn(order); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET payment_status = $1,
			     status = $2,
			     tracking_number = $3,
			     shipped_at = $4,
			     delivered_at = $5,
			     cancellation_reason = $6,
			     updated_at = $7,
			     version = version + 1
			 WHERE id = $8
			   AND version = $9`,
			string(order.PaymentStatus), string(order.Status), order.TrackingNumber,
			order.ShippedAt, order.DeliveredAt, order.CancellationReason, order.UpdatedAt,
			order.ID, order.Version)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrConcurrentUpdate
		}

		order.Version++
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	orders, err := queryOrders(ctx, s.db, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := loadItems(ctx, s.db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *OrderStore) List(ctx context.Context, filter ListFilter) (*OffsetPage, error) {
	status := string(filter.Status)

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	orders, err := queryOrders(ctx, s.db, query, status, filter.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if err := loadItems(ctx, s.db, orders); err != nil {
		return nil, err
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages(total, filter.PageSize),
	}, nil
}

func findOrder(ctx context.Context, q querier, where string, args ...any) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := loadItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func queryOrders(ctx context.Context, q querier, query string, args ...any) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		order         models.Order
		paymentMethod string
		paymentStatus string
		status        string
		shippedAt     sql.NullTime
		deliveredAt   sql.NullTime
	)
	addr := &order.ShippingAddress

	err := row.Scan(
		&order.ID,
		&order.OrderID,
		&order.UserID,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.CouponCode,
		&addr.Name,
		&addr.Email,
		&addr.Phone,
		&addr.Address,
		&addr.City,
		&addr.State,
		&addr.Pincode,
		&addr.Landmark,
		&paymentMethod,
		&paymentStatus,
		&status,
		&order.TrackingNumber,
		&shippedAt,
		&deliveredAt,
		&order.CancellationReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}

	order.PaymentMethod = models.PaymentMethod(paymentMethod)
	order.PaymentStatus = models.PaymentStatus(paymentStatus)
	order.Status = models.OrderStatus(status)
	if shippedAt.Valid {
		t := shippedAt.Time
		order.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		order.DeliveredAt = &t
	}

	return &order, nil
}

// loadItems fills Items for every order with one query.
func loadItems(ctx context.Context, q querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT order_id, id, product_id, quantity, price, size, image
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderPK int64
			item    models.OrderItem
		)
		err := rows.Scan(
			&orderPK,
			&item.ID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&item.Size,
			&item.Image,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderPK]
		orders[i].Items = append(orders[i].Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}
