package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
)

// RegisterValidators installs custom request validators on gin's binding
// engine. Call once before routes are served.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("artifact_kind", func(fl validator.FieldLevel) bool {
		return knownKinds[types.ArtifactKind(fl.Field().String())]
	})
}
