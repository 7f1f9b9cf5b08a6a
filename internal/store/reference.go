package store

import (
	"context"
	"fmt"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

// Sites lists sites by name.
func (s *Store) Sites(ctx context.Context) ([]model.Site, error) {
	const query = `
		SELECT si.id, si.name, COALESCE(d.name, '') AS domain_name
		FROM sites si
		LEFT JOIN domains d ON si.domain_id = d.id
		ORDER BY si.name`

	var sites []model.Site
	if err := s.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// Services lists services by name.
func (s *Store) Services(ctx context.Context) ([]model.Service, error) {
	const query = `SELECT id, name FROM services ORDER BY name`

	var services []model.Service
	if err := s.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// Categories lists risk categories by name.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	const query = `
		SELECT rc.id, rc.name,
		       COALESCE(rc.description, '') AS description,
		       COALESCE(sv.name, '') AS service_name
		FROM risk_categories rc
		LEFT JOIN services sv ON rc.service_id = sv.id
		ORDER BY rc.name`

	var categories []model.Category
	if err := s.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Users lists users by name with their role.
func (s *Store) Users(ctx context.Context) ([]model.User, error) {
	const query = `
		SELECT u.id, u.name, u.email, COALESCE(ro.name, '') AS role_name
		FROM users u
		LEFT JOIN roles ro ON u.role_id = ro.id
		ORDER BY u.name`

	var users []model.User
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
