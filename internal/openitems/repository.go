package openitems

import "context"

// Repository abstracts transactional repository behaviour.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. ForUpdate variants take row locks.
type TxRepository interface {
	FindMaster(ctx context.Context, key MasterKey) (Master, bool, error)
	InsertMaster(ctx context.Context, m Master) (Master, error)
	GetMaster(ctx context.Context, id int64) (Master, error)
	GetMasterForUpdate(ctx context.Context, id int64) (Master, error)
	UpdateMaster(ctx context.Context, m Master) error
	ListMasters(ctx context.Context, filter MasterFilter) ([]Master, error)

	InsertDetail(ctx context.Context, d Detail) (Detail, error)
	GetDetail(ctx context.Context, id int64) (Detail, error)
	GetDetailForUpdate(ctx context.Context, id int64) (Detail, error)
	UpdateDetail(ctx context.Context, d Detail) error
	// ListDetails returns every detail of the master, archived included, oldest first.
	ListDetails(ctx context.Context, masterID int64) ([]Detail, error)

	InsertChange(ctx context.Context, c Change) error
	ListChanges(ctx context.Context, masterID int64) ([]Change, error)
}
