package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"harvest/models"
	"harvest/services"
)

// orderListPreviewItems is how many items an order list entry shows.
const orderListPreviewItems = 3

type partyDTO struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	ProfilePicture *string `json:"profile_picture"`
}

func toPartyDTO(u *models.User) *partyDTO {
	if u == nil {
		return nil
	}
	return &partyDTO{UserID: u.ID, Name: u.Name, ProfilePicture: u.AvatarURL}
}

type availabilityDTO struct {
	Status string `json:"status"`
}

type cartProductDTO struct {
	ProductID     uuid.UUID       `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Image         *string         `json:"image"`
	Unit          string          `json:"unit"`
	StockQuantity int             `json:"stock_quantity"`
	MinimumOrder  int             `json:"minimum_order"`
	MaximumOrder  *int            `json:"maximum_order"`
	Seller        *partyDTO       `json:"seller"`
	Availability  availabilityDTO `json:"availability"`
}

type cartItemDTO struct {
	CartItemID    uuid.UUID           `json:"cart_item_id"`
	Product       cartProductDTO      `json:"product"`
	Quantity      int                 `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Notes         *string             `json:"notes"`
	IsSelected    bool                `json:"is_selected"`
	IsAvailable   bool                `json:"is_available"`
	AddedAt       time.Time           `json:"added_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toCartItemDTO(i models.CartItem) cartItemDTO {
	availability := "out_of_stock"
	if i.Product.InStock() {
		availability = "in_stock"
	}

	return cartItemDTO{
		CartItemID: i.ID,
		Product: cartProductDTO{
			ProductID:     i.ProductID,
			Name:          i.Product.Name,
			Price:         i.Product.Price,
			Image:         i.Product.ImageURL,
			Unit:          i.Product.Unit,
			StockQuantity: i.Product.StockQuantity,
			MinimumOrder:  i.Product.MinimumOrder,
			MaximumOrder:  i.Product.MaximumOrder,
			Seller:        toPartyDTO(&i.Product.Seller),
			Availability:  availabilityDTO{Status: availability},
		},
		Quantity:      i.Quantity,
		UnitPrice:     i.UnitPrice,
		DiscountPrice: i.DiscountPrice,
		Subtotal:      i.Subtotal,
		Notes:         i.Notes,
		IsSelected:    i.IsSelected,
		IsAvailable:   i.Purchasable(),
		AddedAt:       i.AddedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func toCartItemDTOs(items []models.CartItem) []cartItemDTO {
	return lo.Map(items, func(i models.CartItem, _ int) cartItemDTO { return toCartItemDTO(i) })
}

type sellerGroupDTO struct {
	Seller                 *partyDTO       `json:"seller"`
	Items                  []cartItemDTO   `json:"items"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	DeliveryFee            decimal.Decimal `json:"delivery_fee"`
	FreeDeliveryThreshold  decimal.Decimal `json:"free_delivery_threshold"`
	IsEligibleFreeDelivery bool            `json:"is_eligible_free_delivery"`
	AmountForFreeDelivery  decimal.Decimal `json:"amount_for_free_delivery"`
	Total                  decimal.Decimal `json:"total"`
}

type cartSummaryDTO struct {
	TotalItems       int             `json:"total_items"`
	TotalQuantity    int             `json:"total_quantity"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	TotalDeliveryFee decimal.Decimal `json:"total_delivery_fee"`
	ServiceFee       decimal.Decimal `json:"service_fee"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}

type cartDTO struct {
	CartID           uuid.UUID        `json:"cart_id"`
	Items            []cartItemDTO    `json:"items"`
	GroupedBySeller  []sellerGroupDTO `json:"grouped_by_seller"`
	Summary          cartSummaryDTO   `json:"summary"`
	UnavailableItems []cartItemDTO    `json:"unavailable_items"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toCartDTO(v services.CartView) cartDTO {
	return cartDTO{
		CartID: v.CartID,
		Items:  toCartItemDTOs(v.Items),
		GroupedBySeller: lo.Map(v.GroupedBySeller, func(g services.SellerGroup, _ int) sellerGroupDTO {
			return sellerGroupDTO{
				Seller:                 toPartyDTO(&g.Seller),
				Items:                  toCartItemDTOs(g.Items),
				Subtotal:               g.Subtotal,
				DeliveryFee:            g.DeliveryFee,
				FreeDeliveryThreshold:  g.FreeDeliveryThreshold,
				IsEligibleFreeDelivery: g.IsEligibleFreeDelivery,
				AmountForFreeDelivery:  g.AmountForFreeDelivery,
				Total:                  g.Total,
			}
		}),
		Summary: cartSummaryDTO{
			TotalItems:       v.Summary.TotalItems,
			TotalQuantity:    v.Summary.TotalQuantity,
			Subtotal:         v.Summary.Subtotal,
			TotalDiscount:    v.Summary.TotalDiscount,
			TotalDeliveryFee: v.Summary.TotalDeliveryFee,
			ServiceFee:       v.Summary.ServiceFee,
			GrandTotal:       v.Summary.GrandTotal,
		},
		UnavailableItems: toCartItemDTOs(v.UnavailableItems),
		UpdatedAt:        v.UpdatedAt,
	}
}

type createdOrderDTO struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

type paymentInstructionsDTO struct {
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	Amount        decimal.Decimal `json:"amount"`
	ValidUntil    time.Time       `json:"valid_until"`
}

type paymentSummaryDTO struct {
	TotalOrders         int                    `json:"total_orders"`
	GrandTotal          decimal.Decimal        `json:"grand_total"`
	PaymentMethod       string                 `json:"payment_method"`
	PaymentInstructions paymentInstructionsDTO `json:"payment_instructions"`
}

type checkoutDTO struct {
	Orders         []createdOrderDTO `json:"orders"`
	PaymentSummary paymentSummaryDTO `json:"payment_summary"`
}

func toCheckoutDTO(r services.CheckoutResult) checkoutDTO {
	return checkoutDTO{
		Orders: lo.Map(r.Orders, func(o models.Order, _ int) createdOrderDTO {
			return createdOrderDTO{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Status:      o.Status,
				TotalAmount: o.TotalAmount,
			}
		}),
		PaymentSummary: paymentSummaryDTO{
			TotalOrders:   r.Payment.TotalOrders,
			GrandTotal:    r.Payment.GrandTotal,
			PaymentMethod: r.Payment.PaymentMethod,
			PaymentInstructions: paymentInstructionsDTO{
				BankName:      r.Payment.Instructions.BankName,
				AccountNumber: r.Payment.Instructions.AccountNumber,
				AccountName:   r.Payment.Instructions.AccountName,
				Amount:        r.Payment.Instructions.Amount,
				ValidUntil:    r.Payment.Instructions.ValidUntil,
			},
		},
	}
}

type orderListItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Unit        string    `json:"unit"`
	Image       *string   `json:"image"`
}

type orderListDeliveryDTO struct {
	Method         string     `json:"method"`
	Date           *time.Time `json:"date"`
	TrackingNumber *string    `json:"tracking_number"`
}

type orderSummaryDTO struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Status        models.OrderStatus   `json:"status"`
	Seller        *partyDTO            `json:"seller"`
	Buyer         *partyDTO            `json:"buyer,omitempty"`
	Items         []orderListItemDTO   `json:"items"`
	ItemCount     int                  `json:"item_count"`
	TotalQuantity int                  `json:"total_quantity"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
	Delivery      orderListDeliveryDTO `json:"delivery"`
	CreatedAt     time.Time            `json:"created_at"`
}

func toOrderSummaryDTO(o models.Order, role models.OrderRole) orderSummaryDTO {
	dto := orderSummaryDTO{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Seller:      toPartyDTO(o.Seller),
		Items: lo.Map(lo.Slice(o.Items, 0, orderListPreviewItems), func(i models.OrderItem, _ int) orderListItemDTO {
			return orderListItemDTO{
				ProductID:   i.ProductID,
				ProductName: i.ProductName,
				Quantity:    i.Quantity,
				Unit:        i.Unit,
				Image:       i.ProductImage,
			}
		}),
		ItemCount:     len(o.Items),
		TotalQuantity: o.TotalQuantity(),
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency.String(),
		Delivery: orderListDeliveryDTO{
			Method:         o.DeliveryMethod,
			Date:           o.DeliveryDate,
			TrackingNumber: o.TrackingNumber,
		},
		CreatedAt: o.CreatedAt,
	}

	if role == models.OrderRoleSeller {
		dto.Buyer = toPartyDTO(o.Buyer)
	}

	return dto
}

type paginationDTO struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

func toPaginationDTO(p services.OrderPage) paginationDTO {
	return paginationDTO{
		CurrentPage:  p.Page,
		TotalPages:   p.TotalPages,
		TotalItems:   p.TotalItems,
		ItemsPerPage: p.Limit,
	}
}

type orderItemProductDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Image     *string   `json:"image"`
}

type orderDetailItemDTO struct {
	OrderItemID uuid.UUID           `json:"order_item_id"`
	Product     orderItemProductDTO `json:"product"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	Discount    decimal.Decimal     `json:"discount"`
	Subtotal    decimal.Decimal     `json:"subtotal"`
}

type deliveryAddressDTO struct {
	AddressID     string `json:"address_id"`
	FullAddress   string `json:"full_address"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
}

type orderDeliveryDTO struct {
	Method           string              `json:"method"`
	Address          *deliveryAddressDTO `json:"address"`
	Date             *time.Time          `json:"date"`
	TimeSlot         string              `json:"time_slot"`
	Fee              decimal.Decimal     `json:"fee"`
	TrackingNumber   *string             `json:"tracking_number"`
	EstimatedArrival *time.Time          `json:"estimated_arrival"`
}

type pricingDTO struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	ServiceFee    decimal.Decimal `json:"service_fee"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
}

type paymentDTO struct {
	Method string               `json:"method"`
	Status models.PaymentStatus `json:"status"`
	PaidAt *time.Time           `json:"paid_at"`
	DueAt  time.Time            `json:"due_at"`
}

type timelineDTO struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type orderDetailDTO struct {
	OrderID         uuid.UUID            `json:"order_id"`
	OrderNumber     string               `json:"order_number"`
	Status          models.OrderStatus   `json:"status"`
	Seller          *partyDTO            `json:"seller"`
	Buyer           *partyDTO            `json:"buyer"`
	Items           []orderDetailItemDTO `json:"items"`
	Delivery        orderDeliveryDTO     `json:"delivery"`
	Pricing         pricingDTO           `json:"pricing"`
	Payment         paymentDTO           `json:"payment"`
	Timeline        []timelineDTO        `json:"timeline"`
	Notes           *string              `json:"notes"`
	CancelledReason *string              `json:"cancelled_reason"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func toOrderDetailDTO(d services.OrderDetail) orderDetailDTO {
	o := d.Order

	var address *deliveryAddressDTO
	if a := o.DeliveryAddress; a != nil {
		address = &deliveryAddressDTO{
			AddressID:     a.ID,
			FullAddress:   a.FullAddress,
			RecipientName: a.RecipientName,
			Phone:         a.Phone,
		}
	}

	return orderDetailDTO{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Seller:      toPartyDTO(o.Seller),
		Buyer:       toPartyDTO(o.Buyer),
		Items: lo.Map(o.Items, func(i models.OrderItem, _ int) orderDetailItemDTO {
			return orderDetailItemDTO{
				OrderItemID: i.ID,
				Product:     orderItemProductDTO{ProductID: i.ProductID, Name: i.ProductName, Image: i.ProductImage},
				Quantity:    i.Quantity,
				UnitPrice:   i.UnitPrice,
				Discount:    i.Discount,
				Subtotal:    i.Subtotal,
			}
		}),
		Delivery: orderDeliveryDTO{
			Method:           o.DeliveryMethod,
			Address:          address,
			Date:             o.DeliveryDate,
			TimeSlot:         o.DeliveryTimeSlot,
			Fee:              o.DeliveryFee,
			TrackingNumber:   o.TrackingNumber,
			EstimatedArrival: o.EstimatedArrival,
		},
		Pricing: pricingDTO{
			Subtotal:      o.Subtotal,
			DeliveryFee:   o.DeliveryFee,
			ServiceFee:    o.ServiceFee,
			TotalDiscount: o.TotalDiscount,
			Total:         o.TotalAmount,
			Currency:      o.Currency.String(),
		},
		Payment: paymentDTO{
			Method: o.PaymentMethod,
			Status: o.PaymentStatus,
			PaidAt: o.PaidAt,
			DueAt:  o.PaymentDueAt,
		},
		Timeline: lo.Map(d.Timeline, func(e services.TimelineEntry, _ int) timelineDTO {
			return timelineDTO{Status: e.Status, Timestamp: e.Timestamp}
		}),
		Notes:           o.Notes,
		CancelledReason: o.CancelledReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type refundDTO struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	EstimatedDays int             `json:"estimated_days"`
}

type cancelDTO struct {
	OrderID         uuid.UUID          `json:"order_id"`
	Status          models.OrderStatus `json:"status"`
	CancelledReason *string            `json:"cancelled_reason"`
	CancelledAt     *time.Time         `json:"cancelled_at"`
	Refund          *refundDTO         `json:"refund"`
}

func toCancelDTO(r services.CancelResult) cancelDTO {
	dto := cancelDTO{
		OrderID:         r.Order.ID,
		Status:          r.Order.Status,
		CancelledReason: r.Order.CancelledReason,
		CancelledAt:     r.Order.CancelledAt,
	}
	if r.Refund != nil {
		dto.Refund = &refundDTO{Amount: r.Refund.Amount, Method: r.Refund.Method, EstimatedDays: r.Refund.EstimatedDays}
	}
	return dto
}

type buyerDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Phone  *string `json:"phone"`
	Avatar *string `json:"avatar"`
}

type farmerOrderItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage *string         `json:"product_image"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type farmerAddressDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type reviewDTO struct {
	ID        uuid.UUID `json:"id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type farmerOrderDTO struct {
	ID               uuid.UUID            `json:"id"`
	OrderNumber      string               `json:"order_number"`
	Status           models.OrderStatus   `json:"status"`
	Buyer            *buyerDTO            `json:"buyer"`
	Items            []farmerOrderItemDTO `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	DeliveryFee      decimal.Decimal      `json:"delivery_fee"`
	ServiceFee       decimal.Decimal      `json:"service_fee"`
	TotalDiscount    decimal.Decimal      `json:"total_discount"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	Currency         string               `json:"currency"`
	PaymentMethod    string               `json:"payment_method"`
	PaymentStatus    models.PaymentStatus `json:"payment_status"`
	DeliveryMethod   string               `json:"delivery_method"`
	DeliveryAddress  *farmerAddressDTO    `json:"delivery_address"`
	DeliveryDate     *time.Time           `json:"delivery_date"`
	DeliveryTimeSlot string               `json:"delivery_time_slot"`
	TrackingNumber   *string              `json:"tracking_number"`
	EstimatedArrival *time.Time           `json:"estimated_arrival"`
	Notes            *string              `json:"notes"`
	CancelledReason  *string              `json:"cancelled_reason"`
	CancelledAt      *time.Time           `json:"cancelled_at"`
	PaidAt           *time.Time           `json:"paid_at"`
	Reviews          []reviewDTO          `json:"reviews,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func toFarmerOrderDTO(o models.Order) farmerOrderDTO {
	dto := farmerOrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Items: lo.Map(o.Items, func(i models.OrderItem, _ int) farmerOrderItemDTO {
			return farmerOrderItemDTO{
				ID:           i.ID,
				ProductID:    i.ProductID,
				ProductName:  i.ProductName,
				ProductImage: i.ProductImage,
				Unit:         i.Unit,
				Quantity:     i.Quantity,
				UnitPrice:    i.UnitPrice,
				Discount:     i.Discount,
				Subtotal:     i.Subtotal,
			}
		}),
		Subtotal:         o.Subtotal,
		DeliveryFee:      o.DeliveryFee,
		ServiceFee:       o.ServiceFee,
		TotalDiscount:    o.TotalDiscount,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency.String(),
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		DeliveryMethod:   o.DeliveryMethod,
		DeliveryDate:     o.DeliveryDate,
		DeliveryTimeSlot: o.DeliveryTimeSlot,
		TrackingNumber:   o.TrackingNumber,
		EstimatedArrival: o.EstimatedArrival,
		Notes:            o.Notes,
		CancelledReason:  o.CancelledReason,
		CancelledAt:      o.CancelledAt,
		PaidAt:           o.PaidAt,
		Reviews: lo.Map(o.Reviews, func(r models.Review, _ int) reviewDTO {
			return reviewDTO{ID: r.ID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt}
		}),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}

	if b := o.Buyer; b != nil {
		dto.Buyer = &buyerDTO{ID: b.ID, Name: b.Name, Email: b.Email, Phone: b.Phone, Avatar: b.AvatarURL}
	}
	if a := o.DeliveryAddress; a != nil {
		dto.DeliveryAddress = &farmerAddressDTO{
			ID:         a.ID,
			Name:       a.RecipientName,
			Phone:      a.Phone,
			Address:    a.FullAddress,
			City:       a.City,
			State:      a.Province,
			PostalCode: a.PostalCode,
		}
	}

	return dto
}

type farmerOrderUpdateDTO struct {
	ID               uuid.UUID          `json:"id"`
	OrderNumber      string             `json:"order_number"`
	Status           models.OrderStatus `json:"status"`
	TrackingNumber   *string            `json:"tracking_number"`
	EstimatedArrival *time.Time         `json:"estimated_arrival"`
	CancelledReason  *string            `json:"cancelled_reason"`
	CancelledAt      *time.Time         `json:"cancelled_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func toFarmerOrderUpdateDTO(o models.Order) farmerOrderUpdateDTO {
	return farmerOrderUpdateDTO{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		Status:           o.Status,
		TrackingNumber:   o.TrackingNumber,
		EstimatedArrival: o.EstimatedArrival,
		CancelledReason:  o.CancelledReason,
		CancelledAt:      o.CancelledAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func toSellerStatsDTO(s services.SellerStats) gin.H {
	stats := gin.H{
		"total_orders":  s.TotalOrders,
		"total_revenue": s.TotalRevenue,
	}
	for status, count := range s.ByStatus {
		stats[string(status)] = count
	}
	return stats
}
