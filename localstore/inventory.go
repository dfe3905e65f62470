// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/model"
)

// Products returns all products ordered by name.
func (s *Store) Products(ctx context.Context) ([]model.Product, error) {
	return s.queryProducts(ctx,
		`SELECT id, name, quantity, price, created_at, updated_at FROM products ORDER BY name`)
}

// ProductByID returns the product with the given id, or ErrNotFound.
func (s *Store) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, quantity, price, created_at, updated_at FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SearchProducts matches the term against product names.
func (s *Store) SearchProducts(ctx context.Context, term string) ([]model.Product, error) {
	return s.queryProducts(ctx,
		`SELECT id, name, quantity, price, created_at, updated_at FROM products
		 WHERE name LIKE ? ORDER BY name`, "%"+term+"%")
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(ctx context.Context, p *model.Product) error {
	if p.Quantity < 0 {
		return fmt.Errorf("product %s: negative quantity %d", p.ID, p.Quantity)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putProduct(tx, p)
	})
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete product %s: %w", id, err)
		}
		return nil
	})
}

// AdjustProductQuantity applies delta to the stored quantity. It returns
// false and leaves the row untouched when the result would be negative.
func (s *Store) AdjustProductQuantity(ctx context.Context, id string, delta int) (bool, error) {
	ok := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var quantity int
		err := tx.QueryRow(`SELECT quantity FROM products WHERE id = ?`, id).Scan(&quantity)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read product %s quantity: %w", id, err)
		}
		if quantity+delta < 0 {
			return nil
		}
		_, err = tx.Exec(`UPDATE products SET quantity = ?, updated_at = ? WHERE id = ?`,
			quantity+delta, fmtTime(time.Now()), id)
		if err != nil {
			return fmt.Errorf("adjust product %s quantity: %w", id, err)
		}
		ok = true
		return nil
	})
	return ok, err
}

func putProduct(tx *sql.Tx, p *model.Product) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO products (id, name, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Quantity, p.Price, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.Price, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const saleColumns = `id, buyer_name, product_id, product_name, quantity, unit_price, total_price, created_at, updated_at`

// Sales returns all sales ordered by creation time, newest first.
func (s *Store) Sales(ctx context.Context) ([]model.Sale, error) {
	return s.querySales(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC`)
}

// SaleByID returns the sale with the given id, or ErrNotFound.
func (s *Store) SaleByID(ctx context.Context, id string) (*model.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// SearchSales matches the term against buyer and product names.
func (s *Store) SearchSales(ctx context.Context, term string) ([]model.Sale, error) {
	like := "%" + term + "%"
	return s.querySales(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE buyer_name LIKE ? OR product_name LIKE ?
		 ORDER BY created_at DESC`, like, like)
}

// SalesBetween returns sales created inside [from, to].
func (s *Store) SalesBetween(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	return s.querySales(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE created_at >= ? AND created_at <= ?
		 ORDER BY created_at DESC`, fmtTime(from), fmtTime(to))
}

// PutSale inserts or replaces a sale record.
func (s *Store) PutSale(ctx context.Context, sale *model.Sale) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putSale(tx, sale)
	})
}

// DeleteSale removes a sale record.
func (s *Store) DeleteSale(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM sales WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete sale %s: %w", id, err)
		}
		return nil
	})
}

func putSale(tx *sql.Tx, sale *model.Sale) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.BuyerName, sale.ProductID, sale.ProductName,
		sale.Quantity, sale.UnitPrice, sale.TotalPrice,
		fmtTime(sale.CreatedAt), fmtTime(sale.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert sale %s: %w", sale.ID, err)
	}
	return nil
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]model.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func scanSale(row rowScanner) (*model.Sale, error) {
	var sale model.Sale
	var createdAt, updatedAt string
	err := row.Scan(&sale.ID, &sale.BuyerName, &sale.ProductID, &sale.ProductName,
		&sale.Quantity, &sale.UnitPrice, &sale.TotalPrice, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if sale.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sale.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sale, nil
}
