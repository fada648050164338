package api

import "github.com/gin-gonic/gin"

// envelope is the body of every JSON response.
type envelope struct {
	Status bool   `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func successRes(c *gin.Context, code int, data any) {
	c.JSON(code, envelope{Status: true, Data: data})
}

func errorRes(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, envelope{Status: false, Error: msg})
}

// outcomeRes reports a result whose outcome is a refusal. data is still sent
// so clients can show the existing session on a duplicate entry.
func outcomeRes(c *gin.Context, code int, outcome string, data any) {
	c.JSON(code, envelope{Status: false, Error: outcome, Data: data})
}
