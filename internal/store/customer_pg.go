package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

type customerStorage struct {
	db *sqlx.DB
}

// NewCustomerStorage builds the read-only customer lookup.
func NewCustomerStorage(db *sqlx.DB) CustomerStorage {
	return &customerStorage{db: db}
}

func (s *customerStorage) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	query := `SELECT id, first_name, last_name,
			COALESCE(email, '') AS email,
			COALESCE(phone, '') AS phone,
			notify_email, notify_sms, pmb_number,
			COALESCE(location_name, '') AS location_name,
			COALESCE(location_address, '') AS location_address
		FROM customers WHERE id = $1`
	if err := s.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
