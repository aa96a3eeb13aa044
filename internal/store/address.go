package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/icard-hq/apiserver/types"
)

// AddressRepository handles persistence for addresses.
type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Get(ctx context.Context, id int) (types.Address, error) {
	const query = `
		SELECT id, house_no, street, city, state, country, pincode, created_at, updated_at
		FROM addresses
		WHERE id = $1`
	var addr types.Address
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&addr.ID,
		&addr.HouseNo,
		&addr.Street,
		&addr.City,
		&addr.State,
		&addr.Country,
		&addr.Pincode,
		&addr.CreatedAt,
		&addr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Address{}, ErrNotFound
		}
		return types.Address{}, err
	}
	return addr, nil
}

func (r *AddressRepository) Create(ctx context.Context, addr types.Address) (types.Address, error) {
	addr.CreatedAt = time.Now()

	const query = `
		INSERT INTO addresses (house_no, street, city, state, country, pincode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		addr.HouseNo,
		addr.Street,
		addr.City,
		addr.State,
		addr.Country,
		addr.Pincode,
		addr.CreatedAt,
	).Scan(&addr.ID); err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

func (r *AddressRepository) Update(ctx context.Context, addr types.Address) (types.Address, error) {
	now := time.Now()
	addr.UpdatedAt = &now

	const query = `
		UPDATE addresses
		SET house_no = $1,
			street = $2,
			city = $3,
			state = $4,
			country = $5,
			pincode = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		addr.HouseNo,
		addr.Street,
		addr.City,
		addr.State,
		addr.Country,
		addr.Pincode,
		addr.UpdatedAt,
		addr.ID,
	)
	if err != nil {
		return types.Address{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Address{}, err
	}
	if affected == 0 {
		return types.Address{}, ErrNotFound
	}
	return addr, nil
}
