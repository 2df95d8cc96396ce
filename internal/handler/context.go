package handler

import "github.com/gin-gonic/gin"

// actorHeader identifies who performed a scheduling mutation; audit records
// carry it when present. Authentication lives upstream of this service.
const actorHeader = "X-Actor-ID"

func actorID(c *gin.Context) *string {
	actor := c.GetHeader(actorHeader)
	if actor == "" {
		return nil
	}
	return &actor
}

// optionalQuery returns a pointer to a query value, nil when absent.
func optionalQuery(c *gin.Context, key string) *string {
	value, ok := c.GetQuery(key)
	if !ok || value == "" {
		return nil
	}
	return &value
}
