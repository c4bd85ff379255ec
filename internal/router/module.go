package router

import "github.com/gin-gonic/gin"

// Module is one routable feature area (users, auth, email, debug); each
// registers its own routes and middleware on the shared /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
