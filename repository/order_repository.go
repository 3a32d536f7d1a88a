package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"harvest/models"
)

const orderColumns = `o.id, o.order_number, o.checkout_id, o.buyer_id, o.seller_id, o.status,
	o.subtotal, o.delivery_fee, o.service_fee, o.total_discount, o.total_amount, o.currency,
	o.payment_method, o.payment_status, o.payment_due_at, o.paid_at,
	o.delivery_address_id, o.delivery_method, o.delivery_date, o.delivery_time_slot, o.notes,
	o.tracking_number, o.estimated_arrival, o.cancelled_reason, o.cancelled_at, o.created_at, o.updated_at`

const orderPartyColumns = `b.id, b.name, b.email, b.phone, b.avatar_url,
	s.id, s.name, s.email, s.phone, s.avatar_url,
	a.id, a.user_id, a.recipient_name, a.phone, a.full_address, a.city, a.province, a.postal_code`

const orderPartyJoins = `LEFT JOIN users b ON b.id = o.buyer_id
	LEFT JOIN users s ON s.id = o.seller_id
	LEFT JOIN addresses a ON a.id = o.delivery_address_id`

type orderRepository struct {
	db *sql.DB
}

func NewOrder(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) PlaceOrders(ctx context.Context, params PlaceOrdersParams) ([]models.Order, error) {
	if params.BuyerID == "" {
		return nil, errors.New("buyerID is empty")
	}
	if len(params.CartItemIDs) == 0 {
		return nil, errors.New("no cart items in checkout")
	}
	if params.Build == nil || params.NextOrderNumber == nil {
		return nil, errors.New("checkout params are incomplete")
	}

	orders, err := withTx(ctx, r.db, func(tx *sql.Tx) ([]models.Order, error) {
		placeholders, args := inClause(params.CartItemIDs)
		args = append([]any{params.BuyerID}, args...)

		items, err := queryCartItems(ctx, tx,
			"WHERE c.user_id = ? AND ci.id IN ("+placeholders+") ORDER BY ci.added_at, ci.id FOR UPDATE OF ci",
			args...)
		if err != nil {
			return nil, fmt.Errorf("queryCartItems: %w", err)
		}

		if len(items) == 0 {
			return nil, ErrNoCartItems
		}

		orders, err := params.Build(items)
		if err != nil {
			return nil, err
		}

		for i := range orders {
			if err := insertOrderWithNumber(ctx, tx, &orders[i], params.NextOrderNumber); err != nil {
				return nil, err
			}
		}

		itemIDs := lo.Map(items, func(i models.CartItem, _ int) uuid.UUID { return i.ID })
		placeholders, args = inClause(itemIDs)

		result, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("delete cart items: %w", err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("result.RowsAffected: %w", err)
		}
		if deleted != int64(len(itemIDs)) {
			return nil, ErrCartItemsChanged
		}

		return orders, nil
	})
	if err != nil {
		return nil, fmt.Errorf("withTx: %w", err)
	}

	return orders, nil
}

// insertOrderWithNumber inserts the order, regenerating its number on unique-key conflicts.
func insertOrderWithNumber(ctx context.Context, tx *sql.Tx, order *models.Order, next func() string) error {
	for attempt := 1; ; attempt++ {
		err := insertOrder(ctx, tx, *order)
		if err == nil {
			break
		}
		if !isDuplicateKey(err) {
			return fmt.Errorf("insertOrder: %w", err)
		}
		if attempt >= MaxOrderNumberAttempts {
			return fmt.Errorf("insertOrder[%s]: %w", order.OrderNumber, ErrDuplicateOrderNumber)
		}
		order.OrderNumber = next()
	}

	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return fmt.Errorf("insertOrderItems: %w", err)
	}

	return nil
}

func insertOrder(ctx context.Context, q querier, o models.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, checkout_id, buyer_id, seller_id, status,
			subtotal, delivery_fee, service_fee, total_discount, total_amount, currency,
			payment_method, payment_status, payment_due_at, paid_at,
			delivery_address_id, delivery_method, delivery_date, delivery_time_slot, notes,
			tracking_number, estimated_arrival, cancelled_reason, cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.CheckoutID, o.BuyerID, o.SellerID, string(o.Status),
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.TotalDiscount, o.TotalAmount, o.Currency.String(),
		o.PaymentMethod, string(o.PaymentStatus), o.PaymentDueAt, toNull(o.PaidAt),
		toNull(o.DeliveryAddressID), o.DeliveryMethod, toNull(o.DeliveryDate), o.DeliveryTimeSlot, toNull(o.Notes),
		toNull(o.TrackingNumber), toNull(o.EstimatedArrival), toNull(o.CancelledReason), toNull(o.CancelledAt),
		o.CreatedAt, o.UpdatedAt)
	return err
}

func insertOrderItems(ctx context.Context, q querier, orderID uuid.UUID, items []models.OrderItem) error {
	if len(items) == 0 {
		return errors.New("no items in order")
	}

	var (
		values []string
		args   []any
	)
	for _, item := range items {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, item.ID, orderID, item.ProductID, item.ProductName, toNull(item.ProductImage), item.Unit,
			item.Quantity, item.UnitPrice, item.Discount, item.Subtotal, item.CreatedAt)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, product_image, unit,
			quantity, unit_price, discount, subtotal, created_at)
		VALUES `+strings.Join(values, ", "), args...)
	return err
}

func (r *orderRepository) FindCheckoutOrders(ctx context.Context, buyerID string, checkoutID uuid.UUID) ([]models.Order, error) {
	orders, err := r.selectOrders(ctx, r.db, "WHERE o.buyer_id = ? AND o.checkout_id = ? ORDER BY o.created_at, o.order_number",
		buyerID, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("r.selectOrders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID, scope models.OrderScope) (models.Order, error) {
	var o models.Order

	if orderID == uuid.Nil {
		return o, errors.New("orderID is empty")
	}

	where, args := scopeClause(orderID, scope)
	orders, err := r.selectOrders(ctx, r.db, where, args...)
	if err != nil {
		return o, fmt.Errorf("r.selectOrders: %w", err)
	}
	if len(orders) == 0 {
		return o, ErrOrderNotFound
	}
	o = orders[0]

	reviews, err := loadReviews(ctx, r.db, o.ID)
	if err != nil {
		return o, fmt.Errorf("loadReviews: %w", err)
	}
	o.Reviews = reviews

	return o, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, orderID uuid.UUID, scope models.OrderScope, mutate func(*models.Order) error) (models.Order, error) {
	var o models.Order

	if orderID == uuid.Nil {
		return o, errors.New("orderID is empty")
	}

	o, err := withTx(ctx, r.db, func(tx *sql.Tx) (models.Order, error) {
		var o models.Order

		where, args := scopeClause(orderID, scope)
		row := orderRow{}
		err := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o "+where+" FOR UPDATE", args...).
			Scan(row.dest()...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return o, ErrOrderNotFound
			}
			return o, fmt.Errorf("select order: %w", err)
		}

		o, err = mapOrderRowToDomain(row)
		if err != nil {
			return o, fmt.Errorf("mapOrderRowToDomain: %w", err)
		}

		if err := mutate(&o); err != nil {
			return o, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = ?, payment_status = ?, paid_at = ?, tracking_number = ?,
				estimated_arrival = ?, cancelled_reason = ?, cancelled_at = ?, updated_at = ?
			WHERE id = ?`,
			string(o.Status), string(o.PaymentStatus), toNull(o.PaidAt), toNull(o.TrackingNumber),
			toNull(o.EstimatedArrival), toNull(o.CancelledReason), toNull(o.CancelledAt), o.UpdatedAt, o.ID)
		if err != nil {
			return o, fmt.Errorf("update order: %w", err)
		}

		items, err := loadOrderItems(ctx, tx, []uuid.UUID{o.ID})
		if err != nil {
			return o, fmt.Errorf("loadOrderItems: %w", err)
		}
		o.Items = items[o.ID]

		return o, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return o, nil
}

func (r *orderRepository) SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, fmt.Errorf("filter.Validate: %w", err)
	}

	column := "o.buyer_id"
	if filter.Role == models.OrderRoleSeller {
		column = "o.seller_id"
	}

	where := "WHERE " + column + " = ?"
	args := []any{filter.UserID}
	if filter.Status != nil {
		where += " AND o.status = ?"
		args = append(args, string(*filter.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders, err := r.selectOrders(ctx, r.db, where+" ORDER BY o.created_at DESC, o.order_number DESC LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("r.selectOrders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) StatusStats(ctx context.Context, sellerID string) ([]models.StatusStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE seller_id = ?
		GROUP BY status`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	defer rows.Close()

	var stats []models.StatusStat
	for rows.Next() {
		var (
			stat   models.StatusStat
			status string
		)
		if err := rows.Scan(&status, &stat.Count, &stat.Amount); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		stat.Status = models.OrderStatus(status)
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return stats, nil
}

func (r *orderRepository) ListPaymentExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status IN (?, ?) AND payment_status = ? AND payment_due_at <= ?
		ORDER BY payment_due_at
		LIMIT ?`,
		string(models.OrderStatusPendingPayment), string(models.OrderStatusPending),
		string(models.PaymentStatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("select expired orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return ids, nil
}

// selectOrders reads orders with buyer, seller and address joined, then attaches their items.
func (r *orderRepository) selectOrders(ctx context.Context, q querier, where string, args ...any) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+orderColumns+", "+orderPartyColumns+" FROM orders o "+orderPartyJoins+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("q.QueryContext: %w", err)
	}

	var orders []models.Order
	for rows.Next() {
		var (
			row     orderRow
			buyer   userRow
			seller  userRow
			address addressRow
		)

		dest := append(row.dest(), buyer.dest()...)
		dest = append(dest, seller.dest()...)
		dest = append(dest, address.dest()...)

		if err := rows.Scan(dest...); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		order, err := mapOrderRowToDomain(row)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("mapOrderRowToDomain: %w", err)
		}

		order.Buyer = buyer.toDomain()
		order.Seller = seller.toDomain()
		order.DeliveryAddress = address.toDomain()

		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	_ = rows.Close()

	if len(orders) == 0 {
		return nil, nil
	}

	items, err := loadOrderItems(ctx, q, lo.Map(orders, func(o models.Order, _ int) uuid.UUID { return o.ID }))
	if err != nil {
		return nil, fmt.Errorf("loadOrderItems: %w", err)
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func loadOrderItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error) {
	result := make(map[uuid.UUID][]models.OrderItem)
	if len(orderIDs) == 0 {
		return result, nil
	}

	placeholders, args := inClause(orderIDs)
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, unit, quantity,
		       unit_price, discount, subtotal, created_at
		FROM order_items
		WHERE order_id IN (`+placeholders+`)
		ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  models.OrderItem
			image sql.Null[string]
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &image, &item.Unit,
			&item.Quantity, &item.UnitPrice, &item.Discount, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		item.ProductImage = fromNull(image)
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func loadReviews(ctx context.Context, q querier, orderID uuid.UUID) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, order_id, rating, comment, created_at FROM reviews WHERE order_id = ? ORDER BY created_at", orderID)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var (
			review  models.Review
			comment sql.Null[string]
		)
		if err := rows.Scan(&review.ID, &review.OrderID, &review.Rating, &comment, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		review.Comment = fromNull(comment)
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return reviews, nil
}

func scopeClause(orderID uuid.UUID, scope models.OrderScope) (string, []any) {
	where := "WHERE o.id = ?"
	args := []any{orderID}

	if scope.BuyerID != "" {
		where += " AND o.buyer_id = ?"
		args = append(args, scope.BuyerID)
	}
	if scope.SellerID != "" {
		where += " AND o.seller_id = ?"
		args = append(args, scope.SellerID)
	}
	if scope.PartyID != "" {
		where += " AND (o.buyer_id = ? OR o.seller_id = ?)"
		args = append(args, scope.PartyID, scope.PartyID)
	}

	return where, args
}

type orderRow struct {
	ID                uuid.UUID
	OrderNumber       string
	CheckoutID        uuid.UUID
	BuyerID           string
	SellerID          string
	Status            string
	Subtotal          decimal.Decimal
	DeliveryFee       decimal.Decimal
	ServiceFee        decimal.Decimal
	TotalDiscount     decimal.Decimal
	TotalAmount       decimal.Decimal
	Currency          string
	PaymentMethod     string
	PaymentStatus     string
	PaymentDueAt      time.Time
	PaidAt            sql.Null[time.Time]
	DeliveryAddressID sql.Null[string]
	DeliveryMethod    string
	DeliveryDate      sql.Null[time.Time]
	DeliveryTimeSlot  string
	Notes             sql.Null[string]
	TrackingNumber    sql.Null[string]
	EstimatedArrival  sql.Null[time.Time]
	CancelledReason   sql.Null[string]
	CancelledAt       sql.Null[time.Time]
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *orderRow) dest() []any {
	return []any{
		&r.ID, &r.OrderNumber, &r.CheckoutID, &r.BuyerID, &r.SellerID, &r.Status,
		&r.Subtotal, &r.DeliveryFee, &r.ServiceFee, &r.TotalDiscount, &r.TotalAmount, &r.Currency,
		&r.PaymentMethod, &r.PaymentStatus, &r.PaymentDueAt, &r.PaidAt,
		&r.DeliveryAddressID, &r.DeliveryMethod, &r.DeliveryDate, &r.DeliveryTimeSlot, &r.Notes,
		&r.TrackingNumber, &r.EstimatedArrival, &r.CancelledReason, &r.CancelledAt, &r.CreatedAt, &r.UpdatedAt,
	}
}

func mapOrderRowToDomain(r orderRow) (models.Order, error) {
	status, err := models.ToOrderStatus(r.Status)
	if err != nil {
		return models.Order{}, fmt.Errorf("models.ToOrderStatus[%s]: %w", r.Status, err)
	}

	paymentStatus, err := models.ToPaymentStatus(r.PaymentStatus)
	if err != nil {
		return models.Order{}, fmt.Errorf("models.ToPaymentStatus[%s]: %w", r.PaymentStatus, err)
	}

	parsedCurrency, err := currency.ParseISO(r.Currency)
	if err != nil {
		return models.Order{}, fmt.Errorf("currency[%s] is not valid: %w", r.Currency, err)
	}

	return models.Order{
		ID:                r.ID,
		OrderNumber:       r.OrderNumber,
		CheckoutID:        r.CheckoutID,
		BuyerID:           r.BuyerID,
		SellerID:          r.SellerID,
		Status:            status,
		Subtotal:          r.Subtotal,
		DeliveryFee:       r.DeliveryFee,
		ServiceFee:        r.ServiceFee,
		TotalDiscount:     r.TotalDiscount,
		TotalAmount:       r.TotalAmount,
		Currency:          parsedCurrency,
		PaymentMethod:     r.PaymentMethod,
		PaymentStatus:     paymentStatus,
		PaymentDueAt:      r.PaymentDueAt,
		PaidAt:            fromNull(r.PaidAt),
		DeliveryAddressID: fromNull(r.DeliveryAddressID),
		DeliveryMethod:    r.DeliveryMethod,
		DeliveryDate:      fromNull(r.DeliveryDate),
		DeliveryTimeSlot:  r.DeliveryTimeSlot,
		Notes:             fromNull(r.Notes),
		TrackingNumber:    fromNull(r.TrackingNumber),
		EstimatedArrival:  fromNull(r.EstimatedArrival),
		CancelledReason:   fromNull(r.CancelledReason),
		CancelledAt:       fromNull(r.CancelledAt),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

type userRow struct {
	ID        sql.Null[string]
	Name      sql.Null[string]
	Email     sql.Null[string]
	Phone     sql.Null[string]
	AvatarURL sql.Null[string]
}

func (r *userRow) dest() []any {
	return []any{&r.ID, &r.Name, &r.Email, &r.Phone, &r.AvatarURL}
}

func (r userRow) toDomain() *models.User {
	if !r.ID.Valid {
		return nil
	}
	return &models.User{
		ID:        r.ID.V,
		Name:      r.Name.V,
		Email:     r.Email.V,
		Phone:     fromNull(r.Phone),
		AvatarURL: fromNull(r.AvatarURL),
	}
}

type addressRow struct {
	ID            sql.Null[string]
	UserID        sql.Null[string]
	RecipientName sql.Null[string]
	Phone         sql.Null[string]
	FullAddress   sql.Null[string]
	City          sql.Null[string]
	Province      sql.Null[string]
	PostalCode    sql.Null[string]
}

func (r *addressRow) dest() []any {
	return []any{&r.ID, &r.UserID, &r.RecipientName, &r.Phone, &r.FullAddress, &r.City, &r.Province, &r.PostalCode}
}

func (r addressRow) toDomain() *models.Address {
	if !r.ID.Valid {
		return nil
	}
	return &models.Address{
		ID:            r.ID.V,
		UserID:        r.UserID.V,
		RecipientName: r.RecipientName.V,
		Phone:         r.Phone.V,
		FullAddress:   r.FullAddress.V,
		City:          r.City.V,
		Province:      r.Province.V,
		PostalCode:    r.PostalCode.V,
	}
}
