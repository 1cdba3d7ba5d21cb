package constants

const (
	AppStorefrontService   = "storefront-service"
	AppNotificationService = "notification-service"
	AppMainStorefront      = "main storefront"
	AudienceShopper        = "audience-shopper"
)

const (
	ChannelOrderPaid = "orders.paid"
)
