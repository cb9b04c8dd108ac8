package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/handlers/admin"
	"staybook/internal/app/handlers/properties"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	authsvc "staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainauth "staybook/internal/domain/auth"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	domainuser "staybook/internal/domain/user"
	"staybook/internal/infra/security"
)

type statusRule struct {
	status int
	errs   []error
}

var statusRules = []statusRule{
	{http.StatusBadRequest, []error{
		middleware.ErrInvalidMessage,
		daterange.ErrInvalidRange,
		domainbooking.ErrInvalidParty,
		domainbooking.ErrInvalidPrice,
		domainbooking.ErrInvalidStatus,
		domainbooking.ErrGuestRequired,
		domainreviews.ErrInvalidRating,
		domainreviews.ErrGuestRequired,
		domainproperty.ErrIDRequired,
		domainproperty.ErrOwnerRequired,
		domainproperty.ErrTitleRequired,
		domainproperty.ErrNoDays,
		domainproperty.ErrPhotoURLNeeded,
		properties.ErrPhotoRequired,
		money.ErrInvalidCurrency,
		money.ErrCurrencyMismatch,
		money.ErrNegativeAmount,
		domainuser.ErrEmailRequired,
		domainuser.ErrNameRequired,
		domainuser.ErrInvalidRole,
		authsvc.ErrPasswordTooShort,
		security.ErrPasswordTooLong,
	}},
	{http.StatusUnauthorized, []error{
		authsvc.ErrInvalidCredentials,
		authsvc.ErrSessionExpired,
		domainauth.ErrSessionNotFound,
	}},
	{http.StatusForbidden, []error{
		domainbooking.ErrForbidden,
		domainproperty.ErrForbidden,
		domainreviews.ErrNotEligible,
		policies.ErrRoleRequired,
		admin.ErrSelfDelete,
	}},
	{http.StatusNotFound, []error{
		domainbooking.ErrNotFound,
		domainproperty.ErrNotFound,
		domainuser.ErrNotFound,
	}},
	{http.StatusConflict, []error{
		domainbooking.ErrUnavailable,
		domainreviews.ErrDuplicateReview,
		domainuser.ErrEmailAlreadyUsed,
		uow.ErrConcurrentUpdate,
		middleware.ErrIdempotencyKeyReused,
		middleware.ErrLockTimeout,
	}},
	{http.StatusUnprocessableEntity, []error{
		domainbooking.ErrAlreadyCancelled,
		domainbooking.ErrPastCheckIn,
		domainbooking.ErrCheckInInPast,
		domainbooking.ErrInvalidTransition,
		domainbooking.ErrPropertyInactive,
	}},
	{http.StatusServiceUnavailable, []error{
		properties.ErrUploaderUnavailable,
	}},
}

// errorStatus maps application errors to HTTP status codes. Anything not
// listed, store failures included, is a 500.
func errorStatus(err error) int {
	for _, rule := range statusRules {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule.status
			}
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
