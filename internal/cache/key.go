package cache

// Cache key formats. Each takes the owning entity's key via fmt.Sprintf.
const (
	KeyCartByOwner   = "storefront:carts:%s"
	KeyProducts      = "storefront:products:all"
	KeyProductByID   = "storefront:products:%s"
	KeyCategories    = "storefront:categories"
	KeyOrdersByOwner = "storefront:orders:%s"
)
