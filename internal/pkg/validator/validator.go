package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("permit_type", validatePermitType)
}

// Validate - валидация структуры
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// GetValidator - получить валидатор для кастомной конфигурации
func GetValidator() *validator.Validate {
	return validate
}

// validatePermitType - непустое имя типа без пробелов по краям
func validatePermitType(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" || len(v) > 128 {
		return false
	}
	return strings.TrimSpace(v) == v
}

// Describe превращает ошибки валидатора в карту field -> tag для деталей ответа
func Describe(err error) map[string]interface{} {
	details := make(map[string]interface{})
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		details["error"] = err.Error()
		return details
	}
	for _, fe := range verrs {
		details[fe.Namespace()] = fmt.Sprintf("failed on '%s'", fe.Tag())
	}
	return details
}
