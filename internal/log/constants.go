package log

const (
	KeyAppName           = "app"
	KeyRequestID         = "requestId"
	KeyProcess           = "process"
	KeyTag               = "tag"
	KeyConfig            = "config"
	KeyEmail             = "email"
	KeyToken             = "token"
	KeyIdentity          = "identity"
	KeyUserID            = "userId"
	KeySessionID         = "sessionId"
	KeyCacheKey          = "cacheKey"
	KeyCart              = "cart"
	KeyCartItems         = "cartItems"
	KeyCartItemID        = "cartItemId"
	KeyProduct           = "product"
	KeyProductID         = "productId"
	KeyQuantity          = "quantity"
	KeyOrder             = "order"
	KeyOrders            = "orders"
	KeyOrderID           = "orderId"
	KeyReview            = "review"
	KeyCheckoutSession   = "checkoutSession"
	KeyProviderSessionID = "providerSessionId"
	KeyPaymentStatus     = "paymentStatus"
	KeyTotalAmount       = "totalAmount"
	KeyRequestBody       = "requestBody"
	KeyRequestHeader     = "requestHeader"
	KeyRequestHost       = "host"
	KeyRequestIP         = "requesterIP"
	KeyRequestMethod     = "requestMethod"
	KeyRequestURI        = "requestURI"
	KeyRequestURL        = "requestURL"
	KeyPathValues        = "pathValues"
	KeyDbURL             = "dbUrl"
	KeyEndpoint          = "endpoint"
)
