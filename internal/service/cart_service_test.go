package service

import (
	"context"
	"testing"
	"time"

	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartGetCartCreatesOnce(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()

	first, err := f.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	second, err := f.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, constants.CartStatusActive, second.Status)
	assert.Empty(t, second.Items)
	assert.Equal(t, "0.00", second.Summary.FinalAmount.String())

	_, err = f.carts.GetCart(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidUser)
}

func TestCartAddItemSnapshotsPrice(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "100.00", view.Items[0].UnitPrice.String())

	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", product.ID).Update("price_amount", "150").Error)

	view, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, "100.00", view.Items[0].UnitPrice.String())
	assert.Equal(t, "300.00", view.Summary.Subtotal.String())
	assert.Equal(t, 3, view.Summary.ItemCount)
}

func TestCartAddItemRejections(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 2)
	inactive := f.createProduct(t, "retired", "10", 5)
	require.NoError(t, f.db.Model(inactive).Update("is_active", false).Error)

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: -3})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: 9999, Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: inactive.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotAvailable)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 3})
	require.ErrorIs(t, err, ErrInsufficientStock)

}

func TestCartAddItemChecksOnlyAddedQuantity(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "keyboard", "50", 5)

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 6, view.Items[0].Quantity)

	var count int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Where("product_id = ?", product.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 累计超出库存的部分留给结算拦截
	_, err = f.checkout.Checkout(ctx, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, f.reloadProduct(t, product.ID).StockQuantity)
}

func TestCartUnrestrictedCouponOnEmptyCart(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	f.createCoupon(t, &models.Coupon{Code: "FLAT5", DiscountValue: money("5"), IsActive: true})

	_, err := f.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	result, err := f.carts.ApplyCoupon(ctx, 1, "FLAT5")
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.DiscountAmount.String())
	require.Len(t, result.Cart.AppliedCoupons, 1)

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.AppliedCoupons, 1)
	assert.Equal(t, "95.00", view.Summary.FinalAmount.String())

	view, err = f.carts.RemoveItem(ctx, 1, view.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, view.RemovedCoupons)
	require.Len(t, view.AppliedCoupons, 1)
	assert.Equal(t, "FLAT5", view.AppliedCoupons[0].Code)
	assert.Equal(t, "0.00", view.Summary.FinalAmount.String())
}

func TestCartItemOwnership(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := view.Items[0].ID

	_, err = f.carts.UpdateItem(ctx, 2, itemID, 3)
	require.ErrorIs(t, err, ErrCartItemForbidden)

	_, err = f.carts.RemoveItem(ctx, 2, itemID)
	require.ErrorIs(t, err, ErrCartItemForbidden)

	_, err = f.carts.UpdateItem(ctx, 1, 424242, 1)
	require.ErrorIs(t, err, ErrCartItemNotFound)

	_, err = f.carts.UpdateItem(ctx, 1, itemID, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.carts.UpdateItem(ctx, 1, itemID, 11)
	require.ErrorIs(t, err, ErrInsufficientStock)

	view, err = f.carts.UpdateItem(ctx, 1, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)

	view, err = f.carts.RemoveItem(ctx, 1, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartApplyCouponFixedAndPercentage(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	f.createCoupon(t, &models.Coupon{Code: "SAVE20", DiscountType: "fixed", DiscountValue: money("20"), IsActive: true})
	f.createCoupon(t, &models.Coupon{Code: "TENOFF", DiscountType: "percentage", DiscountValue: money("10"), MaxDiscountAmount: money("15"), IsActive: true})

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	result, err := f.carts.ApplyCoupon(ctx, 1, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "20.00", result.DiscountAmount.String())
	assert.Equal(t, "180.00", result.Cart.Summary.FinalAmount.String())

	_, err = f.carts.ApplyCoupon(ctx, 1, "SAVE20")
	require.ErrorIs(t, err, ErrCouponAlreadyApplied)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 2, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	result, err = f.carts.ApplyCoupon(ctx, 2, "TENOFF")
	require.NoError(t, err)
	assert.Equal(t, "15.00", result.DiscountAmount.String())
	assert.Equal(t, "185.00", result.Cart.Summary.FinalAmount.String())
}

func TestCartApplyCouponRejections(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	f.createCoupon(t, &models.Coupon{Code: "BIG", DiscountValue: money("5"), MinTotalPrice: money("500"), IsActive: true})

	_, err := f.carts.ApplyCoupon(ctx, 1, "BIG")
	require.ErrorIs(t, err, ErrCartNotFound)

	_, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.carts.ApplyCoupon(ctx, 1, "  ")
	require.ErrorIs(t, err, ErrCouponInvalid)

	_, err = f.carts.ApplyCoupon(ctx, 1, "NOPE")
	require.ErrorIs(t, err, ErrCouponNotFound)

	_, err = f.carts.ApplyCoupon(ctx, 1, "BIG")
	require.ErrorIs(t, err, ErrCouponMinAmount)

	view, err := f.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, view.AppliedCoupons)
}

func TestCartRemoveItemDetachesIneligibleCoupon(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	mouse := f.createProduct(t, "mouse", "100", 10)
	pad := f.createProduct(t, "pad", "30", 10)
	f.createCoupon(t, &models.Coupon{Code: "OVER120", DiscountValue: money("20"), MinTotalPrice: money("120"), IsActive: true})

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: mouse.ID, Quantity: 1})
	require.NoError(t, err)
	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: pad.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, 1, "OVER120")
	require.NoError(t, err)

	var padItemID uint
	for _, item := range view.Items {
		if item.ProductID == pad.ID {
			padItemID = item.ID
		}
	}
	require.NotZero(t, padItemID)

	view, err = f.carts.RemoveItem(ctx, 1, padItemID)
	require.NoError(t, err)
	assert.Empty(t, view.AppliedCoupons)
	require.Len(t, view.RemovedCoupons, 1)
	assert.Equal(t, "OVER120", view.RemovedCoupons[0].Code)
	assert.Equal(t, constants.CouponRemovalMinAmount, view.RemovedCoupons[0].Reason)
	assert.Equal(t, "100.00", view.Summary.FinalAmount.String())
}

func TestCartUpdateItemRecalculatesDiscount(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	f.createCoupon(t, &models.Coupon{Code: "PCT", DiscountType: "percentage", DiscountValue: money("10"), IsActive: true})

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, 1, "PCT")
	require.NoError(t, err)

	view, err = f.carts.UpdateItem(ctx, 1, view.Items[0].ID, 3)
	require.NoError(t, err)
	require.Len(t, view.AppliedCoupons, 1)
	assert.Equal(t, "30.00", view.AppliedCoupons[0].DiscountAmount.String())
	assert.Equal(t, "270.00", view.Summary.FinalAmount.String())
}

func TestCartFinalAmountNeverNegative(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "sticker", "5", 10)
	f.createCoupon(t, &models.Coupon{Code: "FIVE", DiscountValue: money("4"), IsActive: true})
	f.createCoupon(t, &models.Coupon{Code: "FOUR", DiscountValue: money("4"), IsActive: true})

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, 1, "FIVE")
	require.NoError(t, err)
	result, err := f.carts.ApplyCoupon(ctx, 1, "FOUR")
	require.NoError(t, err)
	assert.Equal(t, "8.00", result.Cart.Summary.TotalDiscount.String())
	assert.Equal(t, "0.00", result.Cart.Summary.FinalAmount.String())
}

func TestCartAutoApplyCoupon(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "60", 10)
	auto := f.createCoupon(t, &models.Coupon{Code: "AUTO10", DiscountValue: money("10"), MinTotalPrice: money("100"), IsAutoApplied: true, IsActive: true})

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, view.AppliedCoupons)

	view, err = f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.AppliedCoupons, 1)
	assert.Equal(t, auto.ID, view.AppliedCoupons[0].CouponID)
	assert.True(t, view.AppliedCoupons[0].IsAutoApplied)
	assert.Equal(t, "110.00", view.Summary.FinalAmount.String())

	// 再次变更不会重复挂载
	view, err = f.carts.UpdateItem(ctx, 1, view.Items[0].ID, 3)
	require.NoError(t, err)
	require.Len(t, view.AppliedCoupons, 1)

	view, err = f.carts.UpdateItem(ctx, 1, view.Items[0].ID, 1)
	require.NoError(t, err)
	assert.Empty(t, view.AppliedCoupons)
	require.Len(t, view.RemovedCoupons, 1)
	assert.Equal(t, constants.CouponRemovalMinAmount, view.RemovedCoupons[0].Reason)
}

func TestCartRemoveCoupon(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	f.createCoupon(t, &models.Coupon{Code: "SAVE20", DiscountValue: money("20"), IsActive: true})

	_, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.carts.RemoveCoupon(ctx, 1, "SAVE20")
	require.ErrorIs(t, err, ErrCouponNotApplied)

	_, err = f.carts.ApplyCoupon(ctx, 1, "SAVE20")
	require.NoError(t, err)
	_, err = f.carts.RemoveCoupon(ctx, 1, "save20")
	require.ErrorIs(t, err, ErrCouponNotApplied)
	view, err := f.carts.RemoveCoupon(ctx, 1, " SAVE20 ")
	require.NoError(t, err)
	assert.Empty(t, view.AppliedCoupons)
	assert.Equal(t, "100.00", view.Summary.FinalAmount.String())
}

func TestCartRevalidateDetachesDeactivatedCoupon(t *testing.T) {
	f := setupServiceTest(t)
	ctx := context.Background()
	product := f.createProduct(t, "mouse", "100", 10)
	coupon := f.createCoupon(t, &models.Coupon{Code: "SAVE20", DiscountValue: money("20"), IsActive: true})

	view, err := f.carts.AddItem(ctx, AddCartItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, 1, "SAVE20")
	require.NoError(t, err)

	require.NoError(t, f.db.Model(coupon).Update("expires_at", time.Now().Add(-time.Minute)).Error)

	removed, err := f.carts.RevalidateCart(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, constants.CouponRemovalExpired, removed[0].Reason)

	removed, err = f.carts.RevalidateCart(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = f.carts.RevalidateCart(ctx, 987654)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
