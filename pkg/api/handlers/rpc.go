package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
)

// RPCHandler forwards arbitrary JSON-RPC methods to the printer host.
type RPCHandler struct {
	controller device.Controller
	validator  *schema.Validator
}

func NewRPCHandler(controller device.Controller, validator *schema.Validator) *RPCHandler {
	return &RPCHandler{controller: controller, validator: validator}
}

// Call handles POST /rpc
// @Summary      Raw JSON-RPC call
// @Description  Sends any Moonraker method and returns its result
// @Tags         rpc
// @Accept       json
// @Produce      json
// @Param        request  body      types.RPCRequest  true  "Method and params"
// @Success      200      {object}  types.RPCResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse  "Remote error"
// @Router       /rpc [post]
func (h *RPCHandler) Call(c *gin.Context) {
	var req types.RPCRequest
	if !bind(c, h.validator, schema.CommandRPC, &req) {
		return
	}
	result, err := h.controller.Call(c.Request.Context(), req.Method, req.Params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RPCResponse{Method: req.Method, Result: result})
}
