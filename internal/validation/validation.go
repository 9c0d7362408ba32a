// internal/validation/validation.go
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/models"
)

var validate *validator.Validate

var (
	alphaSpaceRegex = regexp.MustCompile(`^[\p{L}\s-]+$`)
	slugRegex       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("complex_password", validateComplexPassword)
	validate.RegisterValidation("valid_phone", validatePhone)
	validate.RegisterValidation("alpha_space", validateAlphaSpace)
	validate.RegisterValidation("slug", validateSlug)
	validate.RegisterValidation("quote_status", validateQuoteStatus)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct возвращает ошибки по полям (имя поля берется из тега form) или nil.
func ValidateStruct(data any) url.Values {
	if err := validate.Struct(data); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) url.Values {
	errorsMap := url.Values{}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			errorsMap.Add(fieldErr.Field(), getErrorMessage(fieldErr))
		}
	} else {
		errorsMap.Add("general", "Ошибка валидации: "+err.Error())
	}
	return errorsMap
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "Это поле обязательно для заполнения."
	case "email":
		return "Введите корректный адрес электронной почты."
	case "min":
		return fmt.Sprintf("Минимальное значение или длина: %s.", err.Param())
	case "max":
		return fmt.Sprintf("Максимальное значение или длина: %s.", err.Param())
	case "gt", "gte":
		return fmt.Sprintf("Значение должно быть не меньше %s.", err.Param())
	case "lte":
		return fmt.Sprintf("Значение должно быть не больше %s.", err.Param())
	case "eqfield":
		return "Значения не совпадают."
	case "oneof":
		return fmt.Sprintf("Выберите одно из допустимых значений: %s.", err.Param())
	case "datetime":
		return "Введите дату в формате ГГГГ-ММ-ДД."
	case "numeric":
		return "Введите число."
	case "complex_password":
		return "Пароль должен содержать буквы, цифры и символы."
	case "valid_phone":
		return "Введите корректный номер телефона (например, +7XXXXXXXXXX)."
	case "alpha_space":
		return "Поле может содержать только буквы, пробелы и дефисы."
	case "slug":
		return "Адрес может содержать только латинские буквы в нижнем регистре, цифры и дефисы."
	case "quote_status":
		return "Неизвестный статус заявки."
	default:
		return fmt.Sprintf("Некорректное значение для поля %s.", err.Field())
	}
}

func validateAlphaSpace(fl validator.FieldLevel) bool {
	return alphaSpaceRegex.MatchString(fl.Field().String())
}

func validateComplexPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if password == "" {
		return true
	}
	return auth.IsPasswordComplex(password)
}

func validatePhone(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if phone == "" {
		return false
	}
	return auth.ValidatePhone(phone)
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

func validateQuoteStatus(fl validator.FieldLevel) bool {
	return models.QuoteStatus(fl.Field().String()).Valid()
}
