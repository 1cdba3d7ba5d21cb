package repository

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	cartResponse "github.com/commercelab/storefront/cart/pkg/response"
	orderResponse "github.com/commercelab/storefront/order/pkg/response"
	productResponse "github.com/commercelab/storefront/product/pkg/response"
	reviewResponse "github.com/commercelab/storefront/review/pkg/response"
	userResponse "github.com/commercelab/storefront/user/pkg/response"
)

func (p Product) Response() productResponse.Product {
	return productResponse.Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        DecimalFromNumeric(p.Price),
		Category:     p.Category,
		ImageUrl:     p.ImageUrl,
		Stock:        p.Stock,
		Rating:       DecimalFromNumeric(p.Rating),
		ReviewsCount: p.ReviewsCount,
		CreatedAt:    p.CreatedAt.Time,
	}
}

func (r FindCartItemsRow) Response() cartResponse.CartItem {
	price := DecimalFromNumeric(r.Price)
	return cartResponse.CartItem{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.ProductName,
		ImageUrl:  r.ImageUrl,
		Price:     price,
		Quantity:  r.Quantity,
		Subtotal:  price.Mul(decimal.NewFromInt32(r.Quantity)),
	}
}

func (u User) Response() userResponse.User {
	return userResponse.User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt.Time,
	}
}

func (r Review) Response() reviewResponse.Review {
	return reviewResponse.Review{
		ID:        r.ID,
		ProductID: r.ProductID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.Time,
	}
}

func (o Order) Response() (orderResponse.Order, error) {
	items := []orderResponse.OrderItem{}
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return orderResponse.Order{}, fmt.Errorf(
			"failed unmarshaling order items with error=%w",
			err,
		)
	}
	return orderResponse.Order{
		ID:                o.ID,
		ProviderSessionID: o.ProviderSessionID,
		Items:             items,
		TotalAmount:       DecimalFromNumeric(o.TotalAmount),
		PaymentStatus:     string(o.PaymentStatus),
		CreatedAt:         o.CreatedAt.Time,
	}, nil
}
