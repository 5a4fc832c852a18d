package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/labstack/gommon/log"
)

// CartUsecase は /cart の業務ロジックです。
// 持ち主（ログインユーザー or ゲストトークン）は必ず引数で受け取ります。
type CartUsecase struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
	log         *log.Logger
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	productRepo repo.ProductRepository,
	tx repo.TransactionManager,
	logger *log.Logger,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		tx:          tx,
		log:         logger,
	}
}

// price は現在のカタログ価格
type CartItemResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	VariantID   *string `json:"variant_id,omitempty"`
	Name        string  `json:"name"`
	VariantName string  `json:"variant_name,omitempty"`
	Price       int64   `json:"price_cents"`
	Quantity    int64   `json:"quantity"`
	LineTotal   int64   `json:"line_total_cents"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total_cents"`
}

type AddCartInput struct {
	ProductID string
	VariantID *string
	Quantity  int64
}

func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if err := owner.Validate(); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return u.buildCartResponse(ctx, owner)
}

// AddItem は同じ (owner, product, variant) なら数量を加算する。
func (u *CartUsecase) AddItem(ctx context.Context, owner model.CartOwner, in AddCartInput) (CartResponse, error) {
	if err := owner.Validate(); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found: "+productID)
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// variantなしは空文字ではなくNULLで扱う
	var variantID *string
	if in.VariantID != nil && strings.TrimSpace(*in.VariantID) != "" {
		vid := strings.TrimSpace(*in.VariantID)
		if _, err := u.productRepo.FindVariant(ctx, p.ID, vid); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return CartResponse{}, NewHTTPError(http.StatusNotFound, "variant not found: "+vid)
			}
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		variantID = &vid
	}

	if _, err := u.cartRepo.AddOrIncrement(ctx, owner, p.ID, variantID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, owner)
}

// 0以下は削除と同じ
func (u *CartUsecase) UpdateQuantity(ctx context.Context, owner model.CartOwner, cartItemID string, qty int64) (CartResponse, error) {
	if _, err := u.ownedItem(ctx, owner, cartItemID); err != nil {
		return CartResponse{}, err
	}

	if qty <= 0 {
		if err := u.cartRepo.DeleteByID(ctx, cartItemID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return u.buildCartResponse(ctx, owner)
	}

	if err := u.cartRepo.UpdateQuantity(ctx, cartItemID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, owner)
}

func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.CartOwner, cartItemID string) (CartResponse, error) {
	if _, err := u.ownedItem(ctx, owner, cartItemID); err != nil {
		return CartResponse{}, err
	}
	if err := u.cartRepo.DeleteByID(ctx, cartItemID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, owner)
}

// Clear はユーザーとゲストの両方のカートを消す（ベストエフォート）。
// 決済完了後に呼ばれるので失敗は返さない。
func (u *CartUsecase) Clear(ctx context.Context, userID, sessionID string) {
	owners := make([]model.CartOwner, 0, 2)
	if userID != "" {
		owners = append(owners, model.UserOwner(userID))
	}
	if sessionID != "" {
		owners = append(owners, model.GuestOwner(sessionID))
	}

	for _, owner := range owners {
		n, err := u.cartRepo.DeleteByOwner(ctx, owner)
		if err != nil {
			u.log.Warnf("clear cart (user=%q session=%q) failed: %v", owner.UserID, owner.SessionID, err)
			continue
		}
		if n > 0 {
			u.log.Infof("cleared %d cart rows (user=%q session=%q)", n, owner.UserID, owner.SessionID)
		}
	}
}

// Merge はゲストカートをログインユーザーのカートに移す。
func (u *CartUsecase) Merge(ctx context.Context, userID, sessionID string) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	user := model.UserOwner(userID)
	if strings.TrimSpace(sessionID) == "" {
		return u.buildCartResponse(ctx, user)
	}
	guest := model.GuestOwner(sessionID)

	//途中で失敗したら全部戻す（再試行で数量が二重に加算されないように）
	var merged int
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		carts := r.Carts()
		items, err := carts.ListByOwner(ctx, guest)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		//先に消す。同時に走った別のマージが消した後なら0件で何もしない
		n, err := carts.DeleteByOwner(ctx, guest)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		for _, it := range items {
			if _, err := carts.AddOrIncrement(ctx, user, it.ProductID, it.VariantID, it.Quantity); err != nil {
				return err
			}
		}
		merged = len(items)
		return nil
	})
	if err != nil {
		u.log.Errorf("merge guest cart %s into user %s: %v", sessionID, userID, err)
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if merged > 0 {
		u.log.Infof("merged %d guest cart rows into user %s", merged, userID)
	}

	return u.buildCartResponse(ctx, user)
}

// 他人の行は「存在しない扱い」
func (u *CartUsecase) ownedItem(ctx context.Context, owner model.CartOwner, cartItemID string) (model.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return model.CartItem{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(cartItemID) == "" {
		return model.CartItem{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	it, err := u.cartRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !it.OwnedBy(owner) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return it, nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	items, err := u.cartRepo.ListByOwner(ctx, owner)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	resp := CartResponse{Items: make([]CartItemResponse, 0, len(items))}
	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			//販売終了した商品は表示しない
			continue
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		line := CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      p.Name,
			Quantity:  it.Quantity,
		}

		var variant *model.ProductVariant
		if it.VariantID != nil {
			v, err := u.productRepo.FindVariant(ctx, p.ID, *it.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			variant = &v
			line.VariantName = v.Name
		}

		line.Price = model.UnitPrice(p, variant)
		line.LineTotal = line.Price * line.Quantity
		resp.Total += line.LineTotal
		resp.Items = append(resp.Items, line)
	}
	return resp, nil
}
