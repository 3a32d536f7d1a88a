package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"harvest/models"
)

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price, ci.discount_price,
	ci.subtotal, ci.notes, ci.is_selected, ci.is_available, ci.added_at, ci.updated_at,
	p.seller_id, p.name, p.image_url, p.unit, p.price, p.stock_quantity, p.minimum_order,
	p.maximum_order, p.is_available, u.name, u.avatar_url`

const cartItemJoins = `FROM cart_items ci
	JOIN carts c ON c.id = ci.cart_id
	JOIN products p ON p.id = ci.product_id
	LEFT JOIN users u ON u.id = p.seller_id`

type cartRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCart(db *sql.DB) CartRepository {
	return &cartRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *cartRepository) GetOrCreateCart(ctx context.Context, userID string) (models.Cart, error) {
	var c models.Cart

	if userID == "" {
		return c, errors.New("userID is empty")
	}

	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?", userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		c, err = r.createCart(ctx, userID)
		if err != nil {
			return c, fmt.Errorf("r.createCart: %w", err)
		}
		return c, nil
	case err != nil:
		return c, fmt.Errorf("select cart: %w", err)
	}

	items, err := queryCartItems(ctx, r.db, "WHERE ci.cart_id = ? ORDER BY ci.added_at, ci.id", c.ID)
	if err != nil {
		return c, fmt.Errorf("queryCartItems: %w", err)
	}
	c.Items = items

	return c, nil
}

func (r *cartRepository) createCart(ctx context.Context, userID string) (models.Cart, error) {
	now := r.now()
	c := models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// a concurrent request may have created it first, the unique user_id keeps one
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO carts (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return c, fmt.Errorf("insert cart: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?", userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, fmt.Errorf("select cart: %w", err)
	}

	return c, nil
}

func (r *cartRepository) GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error) {
	var (
		p            models.Product
		image        sql.Null[string]
		maxOrder     sql.Null[int64]
		sellerName   sql.Null[string]
		sellerAvatar sql.Null[string]
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.seller_id, p.name, p.image_url, p.unit, p.price, p.stock_quantity,
		       p.minimum_order, p.maximum_order, p.is_available, u.name, u.avatar_url
		FROM products p
		LEFT JOIN users u ON u.id = p.seller_id
		WHERE p.id = ?`, productID,
	).Scan(&p.ID, &p.SellerID, &p.Name, &image, &p.Unit, &p.Price, &p.StockQuantity,
		&p.MinimumOrder, &maxOrder, &p.IsAvailable, &sellerName, &sellerAvatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, ErrProductNotFound
		}
		return p, fmt.Errorf("select product: %w", err)
	}

	p.ImageURL = fromNull(image)
	p.MaximumOrder = maxOrderPtr(maxOrder)
	p.Seller = models.User{ID: p.SellerID, Name: sellerName.V, AvatarURL: fromNull(sellerAvatar)}

	discounts, err := loadDiscounts(ctx, r.db, []uuid.UUID{p.ID})
	if err != nil {
		return p, fmt.Errorf("loadDiscounts: %w", err)
	}
	p.Discounts = discounts[p.ID]

	return p, nil
}

func (r *cartRepository) GetCartItem(ctx context.Context, userID string, itemID uuid.UUID) (models.CartItem, error) {
	items, err := queryCartItems(ctx, r.db, "WHERE c.user_id = ? AND ci.id = ?", userID, itemID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("queryCartItems: %w", err)
	}

	if len(items) == 0 {
		return models.CartItem{}, ErrCartItemNotFound
	}

	return items[0], nil
}

func (r *cartRepository) SaveItem(ctx context.Context, item models.CartItem) error {
	if item.ID == uuid.Nil {
		return errors.New("cart item ID is empty")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price, discount_price, subtotal,
		                        notes, is_selected, is_available, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = VALUES(quantity),
			unit_price = VALUES(unit_price),
			discount_price = VALUES(discount_price),
			subtotal = VALUES(subtotal),
			notes = VALUES(notes),
			is_selected = VALUES(is_selected),
			is_available = VALUES(is_available),
			updated_at = VALUES(updated_at)`,
		item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPrice, item.DiscountPrice, item.Subtotal,
		toNull(item.Notes), item.IsSelected, item.IsAvailable, item.AddedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "UPDATE carts SET updated_at = ? WHERE id = ?", item.UpdatedAt, item.CartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, userID string, itemID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE ci FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = ? AND ci.id = ?`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *cartRepository) ClearCart(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE ci FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}

	return result.RowsAffected()
}

// queryCartItems selects cart items joined with product and seller, then attaches discounts.
func queryCartItems(ctx context.Context, q querier, where string, args ...any) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+cartItemColumns+" "+cartItemJoins+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("q.QueryContext: %w", err)
	}

	// rows must be released before the next query on a transaction's connection
	items, err := scanCartItems(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	discounts, err := loadDiscounts(ctx, q, lo.Uniq(lo.Map(items, func(i models.CartItem, _ int) uuid.UUID {
		return i.ProductID
	})))
	if err != nil {
		return nil, fmt.Errorf("loadDiscounts: %w", err)
	}

	for i := range items {
		items[i].Product.Discounts = discounts[items[i].ProductID]
	}

	return items, nil
}

func scanCartItems(rows *sql.Rows) ([]models.CartItem, error) {
	var items []models.CartItem

	for rows.Next() {
		var (
			item         models.CartItem
			notes        sql.Null[string]
			image        sql.Null[string]
			maxOrder     sql.Null[int64]
			sellerName   sql.Null[string]
			sellerAvatar sql.Null[string]
		)

		p := &item.Product
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.DiscountPrice,
			&item.Subtotal, &notes, &item.IsSelected, &item.IsAvailable, &item.AddedAt, &item.UpdatedAt,
			&p.SellerID, &p.Name, &image, &p.Unit, &p.Price, &p.StockQuantity, &p.MinimumOrder,
			&maxOrder, &p.IsAvailable, &sellerName, &sellerAvatar,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		item.Notes = fromNull(notes)
		p.ID = item.ProductID
		p.ImageURL = fromNull(image)
		p.MaximumOrder = maxOrderPtr(maxOrder)
		p.Seller = models.User{ID: p.SellerID, Name: sellerName.V, AvatarURL: fromNull(sellerAvatar)}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}

// loadDiscounts returns the active-flagged discounts per product; validity windows are checked by the caller.
func loadDiscounts(ctx context.Context, q querier, productIDs []uuid.UUID) (map[uuid.UUID][]models.Discount, error) {
	result := make(map[uuid.UUID][]models.Discount)
	if len(productIDs) == 0 {
		return result, nil
	}

	placeholders, args := inClause(productIDs)
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, type, value, is_active, valid_from, valid_until
		FROM product_discounts
		WHERE is_active = TRUE AND product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("select discounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d     models.Discount
			dType string
			value decimal.Decimal
		)
		if err := rows.Scan(&d.ID, &d.ProductID, &dType, &value, &d.IsActive, &d.ValidFrom, &d.ValidUntil); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		d.Type = models.DiscountType(dType)
		d.Value = value
		result[d.ProductID] = append(result[d.ProductID], d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func maxOrderPtr(n sql.Null[int64]) *int {
	if !n.Valid {
		return nil
	}
	return lo.ToPtr(int(n.V))
}
