package shipments

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/internal/inventory"
	"github.com/analogfan/marketplace-backend/internal/notifications"
	"github.com/analogfan/marketplace-backend/pkg/carrier"
	"github.com/analogfan/marketplace-backend/pkg/db"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
	"github.com/analogfan/marketplace-backend/pkg/types"
)

// OrderDirectory is the slice of the orders repository the orchestrator needs.
type OrderDirectory interface {
	FindWithBuyer(ctx context.Context, orderID int64) (*models.Order, *models.User, error)
	FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	Update(ctx context.Context, orderID int64, updates map[string]any) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outcome reports how a shipment orchestration run ended. The error fields
// record degraded best-effort steps; the run itself still succeeded.
type Outcome struct {
	AlreadyExists   bool
	Shipment        *models.Shipment
	InventoryErr    error
	ConfirmationErr error
	SellerNotifyErr error
}

// Degraded reports whether any best-effort step failed.
func (o *Outcome) Degraded() bool {
	return o != nil && (o.InventoryErr != nil || o.ConfirmationErr != nil || o.SellerNotifyErr != nil)
}

// MarshalJSON renders errors as strings for API responses.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	view := struct {
		AlreadyExists   bool   `json:"already_exists"`
		ShipmentID      *int64 `json:"shipment_id,omitempty"`
		TrackingNumber  string `json:"tracking_number,omitempty"`
		Degraded        bool   `json:"degraded"`
		InventoryErr    string `json:"inventory_error,omitempty"`
		ConfirmationErr string `json:"confirmation_error,omitempty"`
		SellerNotifyErr string `json:"seller_notification_error,omitempty"`
	}{
		AlreadyExists: o.AlreadyExists,
		Degraded:      o.Degraded(),
	}
	if o.Shipment != nil {
		view.ShipmentID = &o.Shipment.ID
		view.TrackingNumber = o.Shipment.TrackingNumber
	}
	if o.InventoryErr != nil {
		view.InventoryErr = o.InventoryErr.Error()
	}
	if o.ConfirmationErr != nil {
		view.ConfirmationErr = o.ConfirmationErr.Error()
	}
	if o.SellerNotifyErr != nil {
		view.SellerNotifyErr = o.SellerNotifyErr.Error()
	}
	return json.Marshal(view)
}

// Orchestrator drives the post-payment fulfillment pipeline.
type Orchestrator interface {
	// EnsureForOrder runs the full paid-order flow: idempotency check,
	// inventory decrement, confirmation email, label purchase, shipment
	// persistence, order tracking update, seller notification.
	EnsureForOrder(ctx context.Context, orderID int64) (*Outcome, error)
	// CreateWithRate creates a label for an explicit rate choice. Unlike
	// EnsureForOrder it conflicts when a shipment already exists and skips
	// the inventory and confirmation steps.
	CreateWithRate(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error)
}

type orchestrator struct {
	repo      Repository
	orders    OrderDirectory
	tx        txRunner
	inventory inventory.Adjuster
	gateway   carrier.Gateway
	mailer    notifications.Dispatcher
	logg      *logger.Logger
}

// OrchestratorParams wires the orchestration dependencies.
type OrchestratorParams struct {
	Repo      Repository
	Orders    OrderDirectory
	TxRunner  txRunner
	Inventory inventory.Adjuster
	Gateway   carrier.Gateway
	Mailer    notifications.Dispatcher
	Logger    *logger.Logger
}

// NewOrchestrator validates dependencies and builds the orchestrator.
func NewOrchestrator(params OrchestratorParams) (Orchestrator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order directory required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("carrier gateway required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orchestrator{
		repo:      params.Repo,
		orders:    params.Orders,
		tx:        params.TxRunner,
		inventory: params.Inventory,
		gateway:   params.Gateway,
		mailer:    params.Mailer,
		logg:      params.Logger,
	}, nil
}

func (o *orchestrator) EnsureForOrder(ctx context.Context, orderID int64) (*Outcome, error) {
	ctx = o.logg.WithOrderID(ctx, orderID)

	existing, err := o.repo.FindByOrderID(ctx, orderID)
	if err == nil {
		o.logg.Info(ctx, "shipment already exists, skipping orchestration")
		return &Outcome{AlreadyExists: true, Shipment: existing}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing shipment")
	}

	order, buyer, err := o.orders.FindWithBuyer(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	items, err := o.orders.FindItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}

	outcome := &Outcome{}
	outcome.InventoryErr = o.decrementItems(ctx, items)

	if err := o.mailer.SendOrderConfirmation(ctx, order, items); err != nil {
		o.logg.Warn(ctx, fmt.Sprintf("order confirmation email failed: %v", err))
		outcome.ConfirmationErr = err
	}

	shipment, notifyErr, err := o.purchaseLabel(ctx, order, buyer, "")
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			if existing, findErr := o.repo.FindByOrderID(ctx, orderID); findErr == nil {
				o.logg.Info(ctx, "lost shipment insert race, reusing existing shipment")
				outcome.AlreadyExists = true
				outcome.Shipment = existing
				return outcome, nil
			}
		}
		return nil, err
	}
	outcome.Shipment = shipment
	outcome.SellerNotifyErr = notifyErr

	o.logg.Info(o.logg.WithTrackingNumber(ctx, shipment.TrackingNumber), "shipment created")
	return outcome, nil
}

func (o *orchestrator) CreateWithRate(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error) {
	ctx = o.logg.WithOrderID(ctx, orderID)

	if rateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate ID is required")
	}

	_, err := o.repo.FindByOrderID(ctx, orderID)
	if err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipment already exists for this order")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing shipment")
	}

	order, buyer, err := o.orders.FindWithBuyer(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	shipment, notifyErr, err := o.purchaseLabel(ctx, order, buyer, rateID)
	if err != nil {
		return nil, err
	}
	if notifyErr != nil {
		o.logg.Warn(ctx, fmt.Sprintf("seller notification failed: %v", notifyErr))
	}
	return shipment, nil
}

// decrementItems reduces stock for every line item, collecting failures
// without aborting the batch.
func (o *orchestrator) decrementItems(ctx context.Context, items []models.OrderItem) error {
	var combined error
	for _, item := range items {
		err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return o.inventory.Decrement(ctx, tx, item.ItemID, item.Quantity)
		})
		if err != nil {
			o.logg.Warn(ctx, fmt.Sprintf("inventory decrement failed for item %d: %v", item.ItemID, err))
			combined = multierr.Append(combined, fmt.Errorf("item %d: %w", item.ItemID, err))
		}
	}
	return combined
}

// purchaseLabel runs the rate/label/persist/order-update sequence shared by
// the automatic and manual flows. The returned notifyErr records a failed
// best-effort seller notification.
func (o *orchestrator) purchaseLabel(ctx context.Context, order *models.Order, buyer *models.User, rateID string) (shipment *models.Shipment, notifyErr error, err error) {
	address := destinationAddress(order, buyer)
	if !address.Complete() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order address is incomplete")
	}

	if rateID == "" {
		rates, err := o.gateway.GetRates(ctx, address)
		if err != nil {
			return nil, nil, err
		}
		if len(rates) == 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "no shipping rates available")
		}
		rateID = rates[0].ID
	}

	label, err := o.gateway.CreateLabel(ctx, address, rateID, carrier.LabelOptions{
		OrderNumber: order.OrderNumber,
		TotalValue:  order.TotalAmount,
	})
	if err != nil {
		return nil, nil, err
	}

	shipment = &models.Shipment{
		OrderID:               order.ID,
		CarrierTransactionID:  &label.TransactionID,
		Carrier:               label.Carrier,
		Service:               label.Service,
		TrackingNumber:        label.TrackingNumber,
		TrackingURL:           optional(label.TrackingURL),
		LabelURL:              optional(label.LabelURL),
		ShippingCost:          order.ShippingCost,
		Currency:              "EUR",
		DeliveryStatus:        enums.DeliveryStatusLabelCreated,
		EstimatedDeliveryDate: label.ETA,
	}
	if _, err := o.repo.Create(ctx, shipment); err != nil {
		// The unique index on order_id is the backstop for two concurrent
		// runs passing the existence check.
		if db.IsUniqueViolation(err, "shipments_order_id_key") {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "shipment already exists for this order")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist shipment")
	}

	err = o.orders.Update(ctx, order.ID, map[string]any{
		"tracking_number": label.TrackingNumber,
		"order_status":    enums.OrderStatusProcessing,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order tracking")
	}

	notifyErr = o.notifySeller(ctx, order, shipment, label.LabelURL)
	return shipment, notifyErr, nil
}

func (o *orchestrator) notifySeller(ctx context.Context, order *models.Order, shipment *models.Shipment, labelURL string) error {
	var labelPDF []byte
	if labelURL != "" {
		pdf, err := o.gateway.DownloadLabel(ctx, labelURL)
		if err != nil {
			o.logg.Warn(ctx, fmt.Sprintf("label download failed: %v", err))
			return err
		}
		labelPDF = pdf
	}

	if err := o.mailer.SendShippingLabel(ctx, order, shipment, labelPDF); err != nil {
		o.logg.Warn(ctx, fmt.Sprintf("seller label email failed: %v", err))
		return err
	}
	return nil
}

func destinationAddress(order *models.Order, buyer *models.User) types.Address {
	firstName, lastName := "", ""
	if buyer != nil {
		firstName, lastName = buyer.FirstName, buyer.LastName
	}
	phone := ""
	if order.PhoneNumber != nil {
		phone = *order.PhoneNumber
	}
	return types.Address{
		Name:        order.BuyerDisplayName(firstName, lastName),
		Email:       order.Email,
		Phone:       phone,
		Street1:     order.Street + " " + order.HouseNumber,
		HouseNumber: order.HouseNumber,
		City:        order.City,
		Zip:         order.ZipCode,
		Country:     order.Country,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
