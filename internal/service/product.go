package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/model"
)

var ErrProductNotFound = errors.New("product not found")

const productColumns = `id, name, description, price_cents, category, image, stock, position,
	featured, ingredients, benefits, how_to_use, created_at, updated_at`

type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Stock       int    `json:"stock"`
	Featured    bool   `json:"featured"`
	Ingredients string `json:"ingredients"`
	Benefits    string `json:"benefits"`
	HowToUse    string `json:"how_to_use"`
}

func (in ProductInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &ValidationError{Msg: "name is required"}
	case strings.TrimSpace(in.Description) == "":
		return &ValidationError{Msg: "description is required"}
	case strings.TrimSpace(in.Category) == "":
		return &ValidationError{Msg: "category is required"}
	case in.PriceCents < 0:
		return &ValidationError{Msg: "price must not be negative"}
	case in.Stock < 0:
		return &ValidationError{Msg: "stock must not be negative"}
	}
	return nil
}

type ProductService struct {
	db *sql.DB
}

func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db}
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProductNotFound
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, price_cents, category, image, stock, position,
			featured, ingredients, benefits, how_to_use, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, (SELECT COALESCE(MAX(position) + 1, 0) FROM products),
			$8, $9, $10, $11, $12, $12)
		RETURNING `+productColumns,
		uuid.NewString(), in.Name, in.Description, in.PriceCents, in.Category, in.Image, in.Stock,
		in.Featured, in.Ingredients, in.Benefits, in.HowToUse, now,
	)
	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProductNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products SET name = $2, description = $3, price_cents = $4, category = $5,
			image = COALESCE(NULLIF($6, ''), image), stock = $7, featured = $8,
			ingredients = $9, benefits = $10, how_to_use = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, in.Name, in.Description, in.PriceCents, in.Category, in.Image, in.Stock,
		in.Featured, in.Ingredients, in.Benefits, in.HowToUse,
	)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrProductNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Rearrange sets each product's position to its index in ids.
func (s *ProductService) Rearrange(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return &ValidationError{Msg: fmt.Sprintf("invalid product id %q", id)}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE products SET position = $1 WHERE id = $2`, i, id); err != nil {
			return fmt.Errorf("update position: %w", err)
		}
	}

	return tx.Commit()
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category, &p.Image, &p.Stock,
		&p.Position, &p.Featured, &p.Ingredients, &p.Benefits, &p.HowToUse, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
