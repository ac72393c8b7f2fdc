package payment

import (
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

func externalError(gateway, message string) error {
	if message == "" {
		message = "request was not accepted"
	}
	return apperrors.ExternalService(gateway, message)
}
