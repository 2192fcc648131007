package repository

import (
	"context"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// SiteRepository reads sites from the site registry.
type SiteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
}

type siteRepository struct {
	db DBTX
}

// NewSiteRepository instantiates the repository.
func NewSiteRepository(db DBTX) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	const query = `SELECT id, name, lat, lng, zona, departamento FROM sites WHERE id=$1`
	var site domain.Site
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&site.ID,
		&site.Name,
		&site.Location.Lat,
		&site.Location.Lng,
		&site.Zona,
		&site.Departamento,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &site, nil
}
