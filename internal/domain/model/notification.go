package model

// 発送通知メールの入力
type ShippingNotification struct {
	OrderID        string
	OrderNumber    string
	CustomerEmail  string
	CustomerName   string
	TrackingNumber string
	TrackingURL    string
	Carrier        string
	Status         OrderStatus
}
