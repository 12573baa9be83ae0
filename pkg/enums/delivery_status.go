package enums

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the canonical shipment status every vendor code maps onto.
type DeliveryStatus string

const (
	DeliveryStatusLabelCreated   DeliveryStatus = "label_created"
	DeliveryStatusPreTransit     DeliveryStatus = "pre_transit"
	DeliveryStatusTransit        DeliveryStatus = "transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusReturned       DeliveryStatus = "returned"
	DeliveryStatusFailure        DeliveryStatus = "failure"
	DeliveryStatusUnknown        DeliveryStatus = "unknown"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusLabelCreated,
	DeliveryStatusPreTransit,
	DeliveryStatusTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusReturned,
	DeliveryStatusFailure,
	DeliveryStatusUnknown,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// DisplayName returns a customer-facing label for the status.
func (d DeliveryStatus) DisplayName() string {
	switch d {
	case DeliveryStatusLabelCreated:
		return "Label Created"
	case DeliveryStatusPreTransit:
		return "Pre-Transit"
	case DeliveryStatusTransit:
		return "In Transit"
	case DeliveryStatusOutForDelivery:
		return "Out for Delivery"
	case DeliveryStatusDelivered:
		return "Delivered"
	case DeliveryStatusReturned:
		return "Returned"
	case DeliveryStatusFailure:
		return "Delivery Failed"
	default:
		return "Unknown"
	}
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

// DeliveryStatusFromVendorCode maps a Sendcloud parcel status id onto the
// canonical DeliveryStatus. Unmapped codes resolve to unknown.
func DeliveryStatusFromVendorCode(code int) DeliveryStatus {
	switch code {
	case 1, 2:
		return DeliveryStatusPreTransit
	case 3, 4, 5, 11:
		return DeliveryStatusTransit
	case 12:
		return DeliveryStatusOutForDelivery
	case 13:
		return DeliveryStatusDelivered
	case 14, 15:
		return DeliveryStatusFailure
	case 6, 7:
		return DeliveryStatusReturned
	default:
		return DeliveryStatusUnknown
	}
}
