package catalog

import (
	"fmt"
	"time"

	"catalog-service/models"
)

// LowStockThreshold is the quantity at or below which stock counts are shown.
const LowStockThreshold = 5

const displayDateLayout = "2 January 2006"

// StockInfo is the shopper-facing availability of a product or combination.
type StockInfo struct {
	Status      models.StockStatus `json:"status"`
	Text        string             `json:"text"`
	Purchasable bool               `json:"purchasable"`
	Quantity    *int               `json:"quantity,omitempty"`
	AvailableOn *time.Time         `json:"availableOn,omitempty"`
}

// StockDisplay describes the availability of p, or of combination when one is
// given. A known availability date is always part of the text, whether or not
// it has already passed.
func StockDisplay(p models.Product, combination *models.VariantCombination) StockInfo {
	info := StockInfo{Status: p.StockStatus, Quantity: p.StockQuantity}
	if combination != nil {
		info.Status = combination.StockStatus
		if combination.StockQuantity != nil {
			info.Quantity = combination.StockQuantity
		}
	}
	if info.Status == "" {
		info.Status = models.StockOutOfStock
	}
	if p.AvailableFrom != nil && !p.AvailableFrom.IsZero() {
		d := *p.AvailableFrom
		info.AvailableOn = &d
	}
	info.Purchasable = info.Status.Purchasable()

	switch info.Status {
	case models.StockInStock:
		if q := info.Quantity; q != nil && *q > 0 && *q <= LowStockThreshold {
			info.Text = fmt.Sprintf("Only %d left in stock", *q)
		} else {
			info.Text = "In stock"
		}
	case models.StockBackorder:
		info.Text = withDate("Available on backorder", "expected", info.AvailableOn)
	case models.StockPreOrder:
		info.Text = withDate("Available for pre-order", "ships from", info.AvailableOn)
	case models.StockComingSoon:
		info.Text = withDate("Coming soon", "available from", info.AvailableOn)
	case models.StockDiscontinued:
		info.Text = "No longer available"
	default:
		info.Text = "Out of stock"
	}
	return info
}

func withDate(base, lead string, on *time.Time) string {
	if on == nil {
		return base
	}
	return fmt.Sprintf("%s – %s %s", base, lead, on.Format(displayDateLayout))
}
