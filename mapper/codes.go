package mapper

import "catalog-service/models"

// Lookup tables for backend codes. Keys are RawCode.Normalized() values, so
// numeric codes and every casing/separator variant of a name share one entry.

var stockStatusCodes = map[string]models.StockStatus{
	"0":            models.StockInStock,
	"instock":      models.StockInStock,
	"available":    models.StockInStock,
	"1":            models.StockOutOfStock,
	"outofstock":   models.StockOutOfStock,
	"soldout":      models.StockOutOfStock,
	"unavailable":  models.StockOutOfStock,
	"2":            models.StockBackorder,
	"backorder":    models.StockBackorder,
	"onbackorder":  models.StockBackorder,
	"3":            models.StockPreOrder,
	"preorder":     models.StockPreOrder,
	"4":            models.StockComingSoon,
	"comingsoon":   models.StockComingSoon,
	"5":            models.StockDiscontinued,
	"discontinued": models.StockDiscontinued,
}

var productStatusCodes = map[string]models.ProductStatus{
	"0":         models.StatusDraft,
	"draft":     models.StatusDraft,
	"1":         models.StatusPublished,
	"published": models.StatusPublished,
	"active":    models.StatusPublished,
	"2":         models.StatusArchived,
	"archived":  models.StatusArchived,
	"3":         models.StatusHidden,
	"hidden":    models.StatusHidden,
	"inactive":  models.StatusHidden,
}

var productTypeCodes = map[string]models.ProductType{
	"0":        models.TypePhysical,
	"physical": models.TypePhysical,
	"1":        models.TypeDigital,
	"digital":  models.TypeDigital,
	"2":        models.TypeService,
	"service":  models.TypeService,
	"3":        models.TypeVirtual,
	"virtual":  models.TypeVirtual,
	"4":        models.TypeGiftCard,
	"giftcard": models.TypeGiftCard,
}

var mediaTypeCodes = map[string]models.MediaType{
	"":      models.MediaImage,
	"0":     models.MediaImage,
	"image": models.MediaImage,
	"photo": models.MediaImage,
	"1":     models.MediaVideo,
	"video": models.MediaVideo,
}

// StockStatusOf maps a stock code; unknown codes become out-of-stock.
func StockStatusOf(code models.RawCode) (models.StockStatus, bool) {
	if s, ok := stockStatusCodes[code.Normalized()]; ok {
		return s, true
	}
	return models.StockOutOfStock, false
}

// ProductStatusOf maps a status code; unknown codes become draft.
func ProductStatusOf(code models.RawCode) (models.ProductStatus, bool) {
	if s, ok := productStatusCodes[code.Normalized()]; ok {
		return s, true
	}
	return models.StatusDraft, false
}

// ProductTypeOf maps a type code; unknown codes become other.
func ProductTypeOf(code models.RawCode) (models.ProductType, bool) {
	if t, ok := productTypeCodes[code.Normalized()]; ok {
		return t, true
	}
	return models.TypeOther, false
}

// MediaTypeOf maps a media type code; a missing code means image, unknown
// codes become other.
func MediaTypeOf(code models.RawCode) (models.MediaType, bool) {
	if t, ok := mediaTypeCodes[code.Normalized()]; ok {
		return t, true
	}
	return models.MediaOther, false
}
