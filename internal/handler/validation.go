package handler

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate はリクエストDTOの検証器。フィールド名にはJSONのキー名を使う。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// maxbytesはUTF-8のバイト数で上限を検証する。bcryptは72バイトを超える入力を比較に使わない。
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// validateStruct はDTOを検証し、違反したフィールドとタグの対応を返す。違反がなければnil。
func validateStruct(dst any) map[string]string {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": "invalid"}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		tag := fe.Tag()
		if tag == "maxbytes" {
			tag = "max"
		}
		fields[fe.Field()] = tag
	}
	return fields
}
