package helpers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"winledger/errutil"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var base58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("wallet", func(fl validator.FieldLevel) bool {
			return IsWalletAddress(fl.Field().String())
		})
	})
	return validate
}

// IsWalletAddress accepts base58 Solana style addresses.
func IsWalletAddress(addr string) bool {
	return base58Regex.MatchString(addr)
}

// ParseBody decodes the request body into out and runs struct validation.
func ParseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errutil.Validation("invalid request body")
	}
	return ValidateStruct(out)
}

func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errutil.Validation("invalid request")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errutil.Validation("%s", strings.Join(msgs, "; "))
}
