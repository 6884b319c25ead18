package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pccmo/internal"
	"pccmo/internal/dedup"
	"pccmo/internal/util"
)

const orderColumns = `id, orderDate, factoryId, productCode, productDetail, productQuantity, productUnit,
  cementQuantity, loadedQuantity, difference, supervisor, notes, rawMessage,
  lineUserId, lineGroupId, source, syncedToSheets, createdAt`

// summaryGroups whitelists the columns a summary may be grouped by.
var summaryGroups = map[string]string{
	"factory": "factoryId",
	"product": "productCode",
}

// PendingQuantity is a stored order whose product quantity was never parsed.
type PendingQuantity struct {
	ID         int64
	RawMessage string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (internal.StoredOrder, error) {
	var o internal.StoredOrder
	err := s.Scan(
		&o.ID, &o.OrderDate, &o.FactoryID, &o.ProductCode, &o.ProductDetail, &o.ProductQuantity, &o.ProductUnit,
		&o.CementQuantity, &o.LoadedQuantity, &o.Difference, &o.Supervisor, &o.Notes, &o.RawMessage,
		&o.LineUserID, &o.LineGroupID, &o.Source, &o.Synced, &o.CreatedAt,
	)
	return o, err
}

// InsertOrder stores one item and returns its id. createdAt is stamped from
// the configured clock in the configured zone.
func (d *DB) InsertOrder(ctx context.Context, item internal.OrderItem, source internal.MessageSource, traceID string) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO orders (
  orderDate, factoryId, productCode, productDetail, productQuantity, productUnit,
  cementQuantity, loadedQuantity, difference, supervisor, notes, rawMessage,
  lineUserId, lineGroupId, source, traceId, createdAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		item.OrderDate, item.FactoryID, item.ProductCode, item.ProductDetail,
		util.NullFloat(item.ProductQuantity), item.ProductUnit,
		util.NullFloat(item.CementQuantity), util.NullFloat(item.LoadedQuantity), util.NullFloat(item.Difference),
		item.Supervisor, item.Notes, item.RawMessage,
		item.LineUserID, item.LineGroupID, string(source), traceID, d.stamp(d.now()),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) GetOrder(ctx context.Context, id int64) (*internal.StoredOrder, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func buildFilter(f internal.OrderFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.StartDate != "" {
		clauses = append(clauses, "orderDate >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		clauses = append(clauses, "orderDate <= ?")
		args = append(args, f.EndDate)
	}
	if len(f.FactoryIDs) > 0 {
		clauses = append(clauses, "factoryId IN ("+placeholders(len(f.FactoryIDs))+")")
		for _, id := range f.FactoryIDs {
			args = append(args, id)
		}
	}
	if len(f.ProductCodes) > 0 {
		clauses = append(clauses, "productCode IN ("+placeholders(len(f.ProductCodes))+")")
		for _, code := range f.ProductCodes {
			args = append(args, util.NormalizeCode(code))
		}
	}
	for _, list := range []struct {
		col    string
		values []string
	}{
		{"supervisor", f.Supervisors},
		{"lineGroupId", f.LineGroupIDs},
		{"lineUserId", f.LineUserIDs},
	} {
		if len(list.values) == 0 {
			continue
		}
		clauses = append(clauses, list.col+" IN ("+placeholders(len(list.values))+")")
		for _, v := range list.values {
			args = append(args, v)
		}
	}
	if f.MinCement != nil {
		clauses = append(clauses, "cementQuantity >= ?")
		args = append(args, *f.MinCement)
	}
	if f.MaxCement != nil {
		clauses = append(clauses, "cementQuantity <= ?")
		args = append(args, *f.MaxCement)
	}
	if f.Synced != nil {
		clauses = append(clauses, "syncedToSheets = ?")
		args = append(args, boolInt(*f.Synced))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		clauses = append(clauses, "(rawMessage LIKE ? OR productCode LIKE ? OR productDetail LIKE ? OR supervisor LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListOrders returns matching orders newest first.
func (d *DB) ListOrders(ctx context.Context, f internal.OrderFilter, limit, offset int) ([]internal.StoredOrder, error) {
	where, args := buildFilter(f)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY createdAt DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	return d.queryOrders(ctx, query, args...)
}

func (d *DB) CountOrders(ctx context.Context, f internal.OrderFilter) (int, error) {
	where, args := buildFilter(f)
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&n)
	return n, err
}

// ListUnsyncedOrders returns orders not yet pushed to the spreadsheet, oldest
// first so rows are appended in arrival order.
func (d *DB) ListUnsyncedOrders(ctx context.Context, limit int) ([]internal.StoredOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE syncedToSheets = 0 ORDER BY createdAt ASC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return d.queryOrders(ctx, query, args...)
}

func (d *DB) queryOrders(ctx context.Context, query string, args ...any) ([]internal.StoredOrder, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (d *DB) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := d.conn.ExecContext(ctx, `UPDATE orders SET syncedToSheets = 1 WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// DailySummary totals the orders of one order date per factory.
func (d *DB) DailySummary(ctx context.Context, date string) ([]internal.SummaryRow, error) {
	return d.summarize(ctx, "factoryId", "orderDate = ?", date, "factoryId ASC")
}

// SummaryByDate totals one order date grouped by "factory" or "product".
func (d *DB) SummaryByDate(ctx context.Context, date, groupBy string) ([]internal.SummaryRow, error) {
	col, ok := summaryGroups[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported summary group: %q", groupBy)
	}
	return d.summarize(ctx, col, "orderDate = ?", date, "totalCement DESC")
}

// SummaryByMonth totals one YYYY-MM month grouped by "factory" or "product".
func (d *DB) SummaryByMonth(ctx context.Context, month, groupBy string) ([]internal.SummaryRow, error) {
	col, ok := summaryGroups[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported summary group: %q", groupBy)
	}
	return d.summarize(ctx, col, "substr(orderDate, 1, 7) = ?", month, "totalCement DESC")
}

func (d *DB) summarize(ctx context.Context, col, cond, arg, order string) ([]internal.SummaryRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT `+col+` AS groupKey, COUNT(*) AS orderCount, COALESCE(SUM(cementQuantity), 0) AS totalCement
FROM orders
WHERE `+cond+`
GROUP BY `+col+`
ORDER BY `+order, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SummaryRow
	for rows.Next() {
		var (
			row   internal.SummaryRow
			total decimal.NullDecimal
		)
		if err := rows.Scan(&row.GroupKey, &row.OrderCount, &total); err != nil {
			return nil, err
		}
		row.TotalCement = total.Decimal
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) FilterOptions(ctx context.Context) (internal.FilterOptions, error) {
	var opts internal.FilterOptions
	var err error
	if opts.FactoryIDs, err = distinct[int](ctx, d, "factoryId"); err != nil {
		return opts, err
	}
	if opts.ProductCodes, err = distinct[string](ctx, d, "productCode"); err != nil {
		return opts, err
	}
	if opts.Supervisors, err = distinct[string](ctx, d, "supervisor"); err != nil {
		return opts, err
	}
	return opts, nil
}

func distinct[T any](ctx context.Context, d *DB, col string) ([]T, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT DISTINCT `+col+` FROM orders WHERE `+col+` IS NOT NULL ORDER BY `+col)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (d *DB) ListOrdersMissingQuantity(ctx context.Context) ([]PendingQuantity, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, rawMessage FROM orders WHERE productQuantity IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingQuantity
	for rows.Next() {
		var p PendingQuantity
		if err := rows.Scan(&p.ID, &p.RawMessage); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpdateProductQuantity(ctx context.Context, id int64, qty decimal.NullDecimal, unit *string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE orders SET productQuantity = ?, productUnit = ? WHERE id = ?`, util.NullFloat(qty), unit, id)
	return err
}

func identityClause(id dedup.Identity) (string, []any) {
	if id.ByGroup() {
		return "lineGroupId = ?", []any{id.GroupID}
	}
	return "lineUserId = ? AND COALESCE(lineGroupId, '') = ''", []any{id.UserID}
}

func (d *DB) findRecent(ctx context.Context, cond string, args []any, id dedup.Identity, since string) (*int64, error) {
	idCond, idArgs := identityClause(id)
	args = append(args, idArgs...)
	args = append(args, since)

	var found int64
	err := d.conn.QueryRowContext(ctx, `
SELECT id FROM orders
WHERE `+cond+` AND `+idCond+` AND createdAt >= ?
ORDER BY createdAt DESC, id DESC
LIMIT 1
`, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (d *DB) FindRecentByRawMessage(ctx context.Context, q dedup.MessageQuery) (*int64, error) {
	return d.findRecent(ctx, "rawMessage = ?", []any{q.RawMessage}, q.Identity, d.stamp(q.Since))
}

func (d *DB) FindRecentByItemShape(ctx context.Context, q dedup.ItemQuery) (*int64, error) {
	cond := `COALESCE(orderDate, '') = ?
  AND COALESCE(CAST(factoryId AS TEXT), '') = ?
  AND COALESCE(productCode, '') = ?
  AND COALESCE(productDetail, '') = ?
  AND COALESCE(cementQuantity, 0) = ?`
	args := []any{q.OrderDate, q.FactoryID, q.ProductCode, q.ProductDetail, q.CementQuantity}
	return d.findRecent(ctx, cond, args, q.Identity, d.stamp(q.Since))
}
