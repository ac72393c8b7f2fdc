package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/database"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

const orderColumns = `o.id, o.code, o.customer_id, o.state, o.sub_total, o.shipping, o.tax, o.total, o.currency,
	o.shipping_address_id, o.billing_address_id, o.shipping_method_id, o.created_at, o.updated_at`

// Variants are locked in id order so concurrent checkouts touching the same
// rows cannot deadlock.
const lockVariantsSQL = `
	SELECT id, sku, stock_on_hand
	FROM variants
	WHERE id = ANY($1)
	ORDER BY id
	FOR UPDATE`

const adjustStockSQL = `
	UPDATE variants
	SET stock_on_hand = stock_on_hand + $1, updated_at = $2
	WHERE id = $3`

const insertMovementSQL = `
	INSERT INTO stock_movements (id, variant_id, order_id, delta, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CodeExists reports whether an order with the given code exists.
func (r *OrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order code: %w", err)
	}
	return exists, nil
}

// Create reserves stock and inserts the order with its lines in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", lockVariantsSQL)
	defer func() { end(err) }()

	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		demand := demandByVariant(o.Lines)
		ids := sortedKeys(demand)

		if err := reserveStock(ctx, tx, ids, demand, o.Lines); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, code, customer_id, state, sub_total, shipping, tax, total, currency, shipping_address_id, billing_address_id, shipping_method_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			o.ID,
			o.Code,
			o.CustomerID,
			string(o.State),
			o.SubTotal,
			o.Shipping,
			o.Tax,
			o.Total,
			o.Currency,
			o.ShippingAddressID,
			o.BillingAddressID,
			o.ShippingMethodID,
			o.CreatedAt,
			o.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err, "orders_code_key") {
				return apperrors.AlreadyExists("order", "code", o.Code)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		lineQuery := `
			INSERT INTO order_lines (id, order_id, position, variant_id, sku, quantity, unit_price, line_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for i, l := range o.Lines {
			if _, err := tx.Exec(ctx, lineQuery, l.ID, o.ID, i, l.VariantID, l.SKU, l.Quantity, l.UnitPrice, l.LinePrice); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}

		for _, id := range ids {
			if err := recordMovement(ctx, tx, id, o.ID, -demand[id], domain.MovementOrderPlaced, o.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// reserveStock locks the variants, re-checks availability against the
// committed values and decrements them.
func reserveStock(ctx context.Context, tx pgx.Tx, ids []string, demand map[string]int, lines []domain.OrderLine) error {
	rows, err := tx.Query(ctx, lockVariantsSQL, ids)
	if err != nil {
		return fmt.Errorf("lock variants: %w", err)
	}
	type locked struct {
		sku   string
		stock int
	}
	stock := make(map[string]locked, len(ids))
	for rows.Next() {
		var (
			id string
			l  locked
		)
		if err := rows.Scan(&id, &l.sku, &l.stock); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked variant: %w", err)
		}
		stock[id] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate locked variants: %w", err)
	}

	// Check in line order so the reported SKU is the first offending line.
	for _, line := range lines {
		l, ok := stock[line.VariantID]
		if !ok {
			return apperrors.NotFound("variant", line.VariantID)
		}
		if l.stock < demand[line.VariantID] {
			return apperrors.InsufficientStock(l.sku, l.stock, demand[line.VariantID])
		}
	}

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.Exec(ctx, adjustStockSQL, -demand[id], now, id); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	return nil
}

func recordMovement(ctx context.Context, tx pgx.Tx, variantID, orderID string, delta int, reason string, at time.Time) error {
	if _, err := tx.Exec(ctx, insertMovementSQL, uuid.New().String(), variantID, orderID, delta, reason, at); err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its lines in a single query.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "o.id = $1", id)
}

// GetByCode retrieves an order by its code.
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.getOne(ctx, "o.code = $1", code)
}

func (r *OrderRepository) getOne(ctx context.Context, where string, arg string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', l.id,
						'order_id', l.order_id,
						'variant_id', l.variant_id,
						'sku', l.sku,
						'quantity', l.quantity,
						'unit_price', l.unit_price,
						'line_price', l.line_price
					) ORDER BY l.position
				) FILTER (WHERE l.id IS NOT NULL),
				'[]'::jsonb
			) AS lines
		FROM orders o
		LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE ` + where + `
		GROUP BY o.id`

	var linesJSON []byte
	o, err := scanOrder(r.pool.QueryRow(ctx, query, arg), &linesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", arg)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	if o.Lines == nil {
		o.Lines = []domain.OrderLine{}
	}
	return o, nil
}

// List returns orders matching the filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.State != nil {
		args = append(args, string(*filter.State))
		conditions = append(conditions, fmt.Sprintf("o.state = $%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return r.page(ctx, "", where, orderBy(filter.SortField, filter.SortDesc), args, filter.Limit, filter.Offset)
}

// Search matches the term against the order code and customer identity.
func (r *OrderRepository) Search(ctx context.Context, filter repository.SearchFilter) ([]domain.Order, int, error) {
	join := "JOIN customers c ON c.id = o.customer_id"
	where := `WHERE o.code ILIKE $1 ESCAPE '\'
		OR c.first_name ILIKE $1 ESCAPE '\'
		OR c.last_name ILIKE $1 ESCAPE '\'
		OR c.email ILIKE $1 ESCAPE '\'`
	args := []any{"%" + escapeLike(filter.Term) + "%"}

	return r.page(ctx, join, where, orderBy(repository.SortCreatedAt, true), args, filter.Limit, filter.Offset)
}

// page runs one windowed query for the headers and batch-loads their lines.
func (r *OrderRepository) page(ctx context.Context, join, where, order string, args []any, limit, offset int) (orders []domain.Order, total int, err error) {
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders o
		%s
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		orderColumns, join, where, order, len(args)-1, len(args),
	)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachLines loads the lines of all orders with one query.
func (r *OrderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, variant_id, sku, quantity, unit_price, line_price
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("batch load order lines: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderLine, len(orders))
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.SKU, &l.Quantity, &l.UnitPrice, &l.LinePrice); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order line rows: %w", err)
	}

	for i := range orders {
		if lines, ok := byOrder[orders[i].ID]; ok {
			orders[i].Lines = lines
		} else {
			orders[i].Lines = []domain.OrderLine{}
		}
	}
	return nil
}

// UpdateStatus locks the order row and writes the target state, restoring
// stock when the order enters CANCELLED. Orders in a terminal state are
// rejected unless the target repeats that state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, target domain.OrderState, guard repository.TransitionGuard) (change *domain.StatusChange, err error) {
	const lockOrderSQL = `SELECT state FROM orders WHERE id = $1 FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", lockOrderSQL)
	defer func() { end(err) }()

	var (
		previous domain.OrderState
		restored bool
	)
	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var state string
		if err := tx.QueryRow(ctx, lockOrderSQL, id).Scan(&state); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("order", id)
			}
			return fmt.Errorf("lock order: %w", err)
		}
		previous = domain.OrderState(state)

		if guard != nil {
			if err := guard(previous); err != nil {
				return err
			}
		}
		if !domain.CanLeave(previous, target) {
			return apperrors.InvalidInput(fmt.Sprintf("order in terminal state %s cannot move to %s", previous, target))
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE orders SET state = $1, updated_at = $2 WHERE id = $3`, string(target), now, id); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}

		if target != domain.StateCancelled || previous == domain.StateCancelled {
			return nil
		}
		if err := restoreStock(ctx, tx, id, now); err != nil {
			return err
		}
		restored = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.StatusChange{Order: o, Previous: previous, StockRestored: restored}, nil
}

// restoreStock returns every line's quantity to its variant.
func restoreStock(ctx context.Context, tx pgx.Tx, orderID string, now time.Time) error {
	rows, err := tx.Query(ctx, `
		SELECT variant_id, SUM(quantity)::int
		FROM order_lines
		WHERE order_id = $1
		GROUP BY variant_id
		ORDER BY variant_id`, orderID)
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}

	type restore struct {
		variantID string
		qty       int
	}
	var restores []restore
	for rows.Next() {
		var rs restore
		if err := rows.Scan(&rs.variantID, &rs.qty); err != nil {
			rows.Close()
			return fmt.Errorf("scan order line: %w", err)
		}
		restores = append(restores, rs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}

	for _, rs := range restores {
		if _, err := tx.Exec(ctx, adjustStockSQL, rs.qty, now, rs.variantID); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		if err := recordMovement(ctx, tx, rs.variantID, orderID, rs.qty, domain.MovementOrderCancelled, now); err != nil {
			return err
		}
	}
	return nil
}

// scanOrder scans the order header columns followed by one trailing column
// into extra.
func scanOrder(row pgx.Row, extra any) (*domain.Order, error) {
	var (
		o     domain.Order
		state string
	)
	if err := row.Scan(
		&o.ID,
		&o.Code,
		&o.CustomerID,
		&state,
		&o.SubTotal,
		&o.Shipping,
		&o.Tax,
		&o.Total,
		&o.Currency,
		&o.ShippingAddressID,
		&o.BillingAddressID,
		&o.ShippingMethodID,
		&o.CreatedAt,
		&o.UpdatedAt,
		extra,
	); err != nil {
		return nil, err
	}
	o.State = domain.OrderState(state)
	return &o, nil
}

func orderBy(field string, desc bool) string {
	column := "o.created_at"
	switch field {
	case repository.SortUpdatedAt:
		column = "o.updated_at"
	case repository.SortTotal:
		column = "o.total"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return column + " " + dir + ", o.id " + dir
}

func demandByVariant(lines []domain.OrderLine) map[string]int {
	demand := make(map[string]int, len(lines))
	for _, l := range lines {
		demand[l.VariantID] += l.Quantity
	}
	return demand
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
