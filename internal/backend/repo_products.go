package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/repo"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Filterable product attributes, keyed by query parameter.
var filterColumns = map[string]string{
	"category": "category",
	"brand":    "brand",
}

var sortColumns = map[string]string{
	"price":              "price",
	"rating":             "rating",
	"title":              "title",
	"stock":              "stock",
	"discountPercentage": "discount_percentage",
}

// ProductFilter is the parsed form of a filtered product listing request.
type ProductFilter struct {
	Filter map[string][]string
	Sort   types.Sort
	Page   pagination.Params
}

// ProductRepository reads the catalog.
type ProductRepository struct {
	repo.Base
}

func NewProductRepository(conn *gorm.DB) *ProductRepository {
	return &ProductRepository{Base: repo.NewBase(conn)}
}

// List returns every live product.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Where("deleted = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, repo.Translate(err, "", "")
}

// Find applies f and returns one page plus the unpaginated match count.
func (r *ProductRepository) Find(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	where, err := filterClauses(f.Filter)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderClause(f.Sort)
	if err != nil {
		return nil, 0, err
	}
	scoped := func() *gorm.DB {
		query := r.DB(ctx).Model(&models.Product{}).Where("deleted = ?", false)
		for _, clause := range where {
			query = query.Where(clause.column+" IN ?", clause.values)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, repo.Translate(err, "", "")
	}

	query := scoped().Order(order)
	if f.Page.Enabled() {
		query = query.Offset(f.Page.Offset()).Limit(pagination.NormalizeLimit(f.Page.Limit))
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, repo.Translate(err, "", "")
	}
	return rows, total, nil
}

type inClause struct {
	column string
	values []string
}

func filterClauses(filter map[string][]string) ([]inClause, error) {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]inClause, 0, len(keys))
	for _, key := range keys {
		column, ok := filterColumns[key]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported filter").
				WithDetails(map[string]string{key: "is not filterable"})
		}
		if values := nonEmpty(filter[key]); len(values) > 0 {
			out = append(out, inClause{column: column, values: values})
		}
	}
	return out, nil
}

// FindByID loads a live product.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var row models.Product
	err := r.DB(ctx).Where("id = ? AND deleted = ?", id, false).First(&row).Error
	if err != nil {
		return nil, repo.Translate(err, "product not found", "")
	}
	return &row, nil
}

// Brands returns the distinct brands in the catalog.
func (r *ProductRepository) Brands(ctx context.Context) ([]types.Option, error) {
	return r.distinct(ctx, "brand")
}

// Categories returns the distinct categories in the catalog.
func (r *ProductRepository) Categories(ctx context.Context) ([]types.Option, error) {
	return r.distinct(ctx, "category")
}

func (r *ProductRepository) distinct(ctx context.Context, column string) ([]types.Option, error) {
	var values []string
	err := r.DB(ctx).
		Model(&models.Product{}).
		Where("deleted = ?", false).
		Distinct(column).
		Order(column+" ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, repo.Translate(err, "", "")
	}
	out := make([]types.Option, 0, len(values))
	for _, v := range values {
		out = append(out, types.Option{Label: v, Value: v})
	}
	return out, nil
}

func orderClause(s types.Sort) (string, error) {
	if s.Field == "" {
		return "created_at ASC, id ASC", nil
	}
	column, ok := sortColumns[s.Field]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort field").
			WithDetails(map[string]string{"_sort": fmt.Sprintf("cannot sort by %q", s.Field)})
	}
	dir := strings.ToLower(strings.TrimSpace(s.Order))
	switch dir {
	case "", "asc":
		dir = "ASC"
	case "desc":
		dir = "DESC"
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort order").
			WithDetails(map[string]string{"_order": "must be asc or desc"})
	}
	return column + " " + dir + ", id ASC", nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
