package orders

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/internal/shipments"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ShipmentEnsurer triggers fulfillment when an order becomes paid.
type ShipmentEnsurer interface {
	EnsureForOrder(ctx context.Context, orderID int64) (*shipments.Outcome, error)
}

// Service defines order operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ApplyUpdate(ctx context.Context, orderID int64, input UpdateOrderInput) (*UpdateResult, error)
	GetByID(ctx context.Context, orderID int64) (*models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	fulfiller ShipmentEnsurer
	logg      *logger.Logger
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo      Repository
	TxRunner  txRunner
	Fulfiller ShipmentEnsurer
	Logger    *logger.Logger
}

// NewService validates dependencies and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Fulfiller == nil {
		return nil, fmt.Errorf("shipment ensurer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.TxRunner,
		fulfiller: params.Fulfiller,
		logg:      params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	paymentStatus := enums.PaymentStatusPending
	if input.PaymentStatus != "" {
		parsed, err := enums.ParsePaymentStatus(input.PaymentStatus)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		paymentStatus = parsed
	}

	orderStatus := enums.OrderStatusPending
	if input.OrderStatus != "" {
		parsed, err := enums.ParseOrderStatus(input.OrderStatus)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
		}
		orderStatus = parsed
	}

	orderNumber := input.OrderNumber
	if orderNumber == "" {
		generated, err := s.generateOrderNumber(ctx)
		if err != nil {
			return nil, err
		}
		orderNumber = generated
	}

	order := &models.Order{
		UserID:        input.UserID,
		OrderNumber:   orderNumber,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
		Street:        input.Street,
		HouseNumber:   input.HouseNumber,
		City:          input.City,
		ZipCode:       input.ZipCode,
		Country:       input.Country,
		Subtotal:      input.Subtotal,
		TaxAmount:     input.TaxAmount,
		ShippingCost:  input.ShippingCost,
		TotalAmount:   input.TotalAmount,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: paymentStatus,
		TransactionID: input.TransactionID,
		OrderStatus:   orderStatus,
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			ItemID:   item.ItemID,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, createErr := s.repo.WithTx(tx).Create(ctx, order)
		return createErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// ApplyUpdate persists the patch and, when paymentStatus transitions from a
// non-paid value to paid, runs the shipment orchestration as a contained side
// effect. Orchestration failure never fails the update.
func (s *service) ApplyUpdate(ctx context.Context, orderID int64, input UpdateOrderInput) (*UpdateResult, error) {
	ctx = s.logg.WithOrderID(ctx, orderID)

	updates, newPayment, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	result := &UpdateResult{}

	if newPayment != nil && newPayment.IsPaid() && !current.PaymentStatus.IsPaid() {
		outcome, fulfillErr := s.fulfiller.EnsureForOrder(ctx, orderID)
		if fulfillErr != nil {
			s.logg.Error(ctx, "shipment orchestration failed", fulfillErr)
		} else {
			if outcome.Degraded() {
				s.logg.Warn(ctx, "shipment orchestration completed degraded")
			}
			result.Fulfillment = outcome
		}
	}

	updated, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	result.Order = updated
	return result, nil
}

func (s *service) GetByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user orders")
	}
	return orders, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	orders, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	return orders, nil
}

// buildUpdates translates the patch into a column map, rejecting invalid enum
// strings before anything is persisted.
func buildUpdates(input UpdateOrderInput) (map[string]any, *enums.PaymentStatus, error) {
	updates := map[string]any{}

	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setString("email", input.Email)
	setString("phone_number", input.PhoneNumber)
	setString("street", input.Street)
	setString("house_number", input.HouseNumber)
	setString("city", input.City)
	setString("zip_code", input.ZipCode)
	setString("country", input.Country)
	setString("payment_method", input.PaymentMethod)
	setString("transaction_id", input.TransactionID)
	setString("tracking_number", input.TrackingNumber)

	if input.Subtotal != nil {
		updates["subtotal"] = *input.Subtotal
	}
	if input.TaxAmount != nil {
		updates["tax_amount"] = *input.TaxAmount
	}
	if input.ShippingCost != nil {
		updates["shipping_cost"] = *input.ShippingCost
	}
	if input.TotalAmount != nil {
		updates["total_amount"] = *input.TotalAmount
	}

	var newPayment *enums.PaymentStatus
	if input.PaymentStatus != nil {
		parsed, err := enums.ParsePaymentStatus(*input.PaymentStatus)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		updates["payment_status"] = parsed
		newPayment = &parsed
	}
	if input.OrderStatus != nil {
		parsed, err := enums.ParseOrderStatus(*input.OrderStatus)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
		}
		updates["order_status"] = parsed
	}

	return updates, newPayment, nil
}
