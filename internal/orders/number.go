package orders

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
)

const orderNumberAttempts = 10

// generateOrderNumber produces a human-readable ORD-YYYYMMDD-NNNN number,
// retrying on the rare collision with an existing order.
func (s *service) generateOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		candidate := fmt.Sprintf("ORD-%s-%04d", time.Now().Format("20060102"), rand.Intn(9999)+1)

		_, err := s.repo.FindByOrderNumber(ctx, candidate)
		if err == gorm.ErrRecordNotFound {
			return candidate, nil
		}
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number uniqueness")
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, "could not allocate a unique order number")
}
