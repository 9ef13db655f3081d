package handler

import (
	"net/http"

	"gestornomina/internal/dto"
	"gestornomina/internal/service"

	"github.com/gin-gonic/gin"
)

type MovimientosHandler struct{ svc service.MovimientoService }

func NewMovimientosHandler(svc service.MovimientoService) *MovimientosHandler {
	return &MovimientosHandler{svc: svc}
}

// Crear godoc
// @Summary      Registra un consumo, adelanto o abono manual
// @Tags         movimientos
// @Accept       json
// @Produce      json
// @Param        body body dto.CrearMovimientoRequest true "Movimiento"
// @Success      201  {object} dto.MovimientoResponse
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/nomina/movimientos [post]
func (h *MovimientosHandler) Crear(c *gin.Context) {
	var req dto.CrearMovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *MovimientosHandler) Actualizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarMovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MovimientosHandler) Eliminar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
		responderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AjustarMonto godoc
// @Summary      Ajusta el monto de un consumo sin perder el monto original del POS
// @Tags         movimientos
// @Accept       json
// @Produce      json
// @Param        id   path string true "UUID del movimiento"
// @Param        body body dto.AjustarMontoRequest true "Nuevo monto"
// @Success      200  {object} dto.AjusteMontoResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/nomina/movimientos/{id}/ajustar-monto [post]
func (h *MovimientosHandler) AjustarMonto(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AjustarMontoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjustarMonto(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MovimientosHandler) DescuentoPorcentaje(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.DescuentoPorcentajeRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.svc.AplicarDescuentoPorcentaje(c.Request.Context(), id, req.Porcentaje)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar returns an employee's movements, newest first.
// ?pendientes=true restricts the list to unsettled ones.
func (h *MovimientosHandler) Listar(c *gin.Context) {
	empleadoID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarPorEmpleado(c.Request.Context(), empleadoID, queryBool(c, "pendientes"))
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Saldo godoc
// @Summary      Saldo pendiente del empleado (consumos + adelantos − abonos)
// @Tags         movimientos
// @Produce      json
// @Param        id  path  int  true  "ID del empleado"
// @Param        pos query bool false "Incluir el saldo de cuenta corriente del POS"
// @Success      200  {object} dto.SaldoResponse
// @Router       /v1/nomina/empleados/{id}/saldo [get]
func (h *MovimientosHandler) Saldo(c *gin.Context) {
	empleadoID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Saldo(c.Request.Context(), empleadoID, queryBool(c, "pos"))
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
