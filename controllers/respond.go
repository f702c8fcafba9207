package controllers

import (
	"civicsync/apperr"
	"civicsync/middlewares"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func respondError(c *gin.Context, err error) {
	middlewares.AbortWithError(c, err)
}

// bindJSON binds the request body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.E(apperr.Validation, err.Error()))
		return false
	}
	return true
}

func issueIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Validationf("Invalid issue ID"))
		return primitive.NilObjectID, false
	}
	return id, true
}
