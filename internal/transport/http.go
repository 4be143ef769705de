package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/config"
	"github.com/vasiliy-maslov/storefront/internal/discount"
	"github.com/vasiliy-maslov/storefront/internal/handler"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/pricing"
)

func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	pricingCfg := pricing.Config{
		ShippingThreshold: cfg.Pricing.ShippingThreshold,
		ShippingFee:       cfg.Pricing.ShippingFee,
		TaxRate:           cfg.Pricing.TaxRate,
	}

	cartService := cart.NewService(cart.NewRepository(pool), cfg.Pricing.PriceStaleAge)
	orderService := order.NewService(order.NewRepository(pool))

	discountRepo := discount.NewRepository(pool)
	discountValidator := discount.NewValidator(discountRepo)
	discountRecorder := discount.NewRecorder(discountRepo)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	handler.NewCartHandler(cartService, pricingCfg).RegisterRoutes(r)
	handler.NewDiscountHandler(discountValidator, cartService).RegisterRoutes(r)
	handler.NewCheckoutHandler(cartService, orderService, discountValidator, discountRecorder, pricingCfg).RegisterRoutes(r)
	handler.NewOrderHandler(orderService).RegisterRoutes(r)

	return r
}
