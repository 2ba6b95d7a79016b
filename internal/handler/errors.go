package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/auth"
	"github.com/xenking/mishramart/internal/domain/coupon"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/domain/wishlist"
	"github.com/xenking/mishramart/internal/payment"
	"github.com/xenking/mishramart/pkg/httpmiddleware"
)

const internalErrorMessage = "something went wrong, please try again"

// errorStatus maps domain errors to an HTTP status and user-facing message.
// Unknown errors map to 500 with a generic message.
func errorStatus(err error) (int, string) {
	var (
		bre    *badRequestError
		iqErr  *order.InvalidQuantityError
		isErr  *order.InvalidSizeError
		mfErr  *order.MissingFieldsError
		pnfErr *order.ProductNotFoundError
		tmErr  *order.TotalMismatchError
		pcErr  *order.PriceChangedError
		trErr  *order.TransitionError
		minErr *coupon.MinimumNotMetError
	)
	switch {
	case errors.As(err, &bre):
		return http.StatusBadRequest, bre.Error()
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, auth.ErrUnauthenticated.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.ErrForbidden.Error()

	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, order.ErrNotFound.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error()

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, wishlist.ErrInvalidProductID):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &iqErr):
		return http.StatusBadRequest, iqErr.Error()
	case errors.As(err, &isErr):
		return http.StatusBadRequest, isErr.Error()
	case errors.As(err, &mfErr):
		return http.StatusBadRequest, mfErr.Error()
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, payment.ErrInvalidSignature.Error()

	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, pnfErr.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity, coupon.ErrInvalidCoupon.Error()
	case errors.Is(err, coupon.ErrCouponExpired):
		return http.StatusUnprocessableEntity, coupon.ErrCouponExpired.Error()
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity, coupon.ErrCouponUsageLimitReached.Error()
	case errors.As(err, &minErr):
		return http.StatusUnprocessableEntity, minErr.Error()
	case errors.Is(err, payment.ErrDisabled):
		return http.StatusUnprocessableEntity, payment.ErrDisabled.Error()
	case errors.Is(err, payment.ErrUnavailable):
		return http.StatusServiceUnavailable, payment.ErrUnavailable.Error()

	case errors.As(err, &tmErr):
		return http.StatusConflict, tmErr.Error()
	case errors.As(err, &pcErr):
		return http.StatusConflict, pcErr.Error()
	case errors.As(err, &trErr):
		return http.StatusConflict, trErr.Error()
	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrAlreadyPaid),
		errors.Is(err, order.ErrNotOnlinePayment):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// writeError maps err and writes the API error body. Server errors are
// logged with the request logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, status, msg)
}
