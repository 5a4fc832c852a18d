package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/repository"
)

type Handlers struct {
	Checkout   *handler.CheckoutHandler
	Webhook    *handler.WebhookHandler
	Cart       *handler.CartHandler
	Orders     *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
}

func (s *Server) registerRoutes(cfg config.Config, h Handlers, roles repository.UserRoleRepository) {
	handler.RegisterHealth(s.echo)
	h.Webhook.RegisterRoutes(s.echo)
	h.Checkout.RegisterRoutes(s.echo, cfg)
	h.Cart.RegisterRoutes(s.echo, cfg)
	h.Orders.RegisterRoutes(s.echo, cfg)
	h.AdminOrder.RegisterRoutes(s.echo, cfg, roles)
}
