package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/stroke-api/pkg/validator"
)

// RegisterValidation makes gin's binding validator report json field
// names, so binding errors name fields the way the request body does.
// It must run before the first request is bound.
func RegisterValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		pkgvalidator.RegisterJSONTagNames(v)
	}
}
