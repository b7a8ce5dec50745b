package lead

import "context"

// Repository - порт хранилища лидов.
type Repository interface {
	Create(ctx context.Context, l *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	Update(ctx context.Context, l *Lead) error
}
