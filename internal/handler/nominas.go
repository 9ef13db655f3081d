package handler

import (
	"net/http"

	"gestornomina/internal/dto"
	"gestornomina/internal/service"

	"github.com/gin-gonic/gin"
)

type NominasHandler struct {
	svc         service.NominaService
	liquidacion service.LiquidacionService
}

func NewNominasHandler(svc service.NominaService, liquidacion service.LiquidacionService) *NominasHandler {
	return &NominasHandler{svc: svc, liquidacion: liquidacion}
}

// Abrir godoc
// @Summary      Abre una nómina y reúne los consumos y adelantos pendientes del periodo
// @Tags         nominas
// @Accept       json
// @Produce      json
// @Param        body body dto.AbrirNominaRequest true "Periodo"
// @Success      201  {object} dto.NominaResponse
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/nomina/nominas [post]
func (h *NominasHandler) Abrir(c *gin.Context) {
	var req dto.AbrirNominaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *NominasHandler) Detalle(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Detalle(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NominasHandler) Actualizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarNominaRequest
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

func (h *NominasHandler) Eliminar(c *gin.Context) {
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

func (h *NominasHandler) ListarPorEmpleado(c *gin.Context) {
	empleadoID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarPorEmpleado(c.Request.Context(), empleadoID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ModificarDirectivas godoc
// @Summary      Cambia la directiva de descuento de uno o más movimientos
// @Description  Cada ítem se valida por separado; los rechazados no afectan a los demás.
// @Tags         nominas
// @Accept       json
// @Produce      json
// @Param        id   path string true "UUID de la nómina"
// @Param        body body dto.ModificarDirectivasRequest true "Directivas"
// @Success      200  {object} dto.ConfiguracionResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/nomina/nominas/{id}/directivas [put]
func (h *NominasHandler) ModificarDirectivas(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ModificarDirectivasRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ModificarDirectivas(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NominasHandler) PresupuestoGlobal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.PresupuestoGlobalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AplicarPresupuestoGlobal(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NominasHandler) AgregarMovimientos(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AgregarMovimientosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AgregarMovimientos(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Liquidar godoc
// @Summary      Liquida la nómina: descuenta movimientos, congela montos y reporta al POS
// @Description  Un fallo al publicar en el POS no revierte la liquidación; se informa en publicacion_pos.
// @Tags         nominas
// @Produce      json
// @Param        id path string true "UUID de la nómina"
// @Success      200  {object} dto.LiquidacionResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/nomina/nominas/{id}/liquidar [post]
func (h *NominasHandler) Liquidar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.liquidacion.Liquidar(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NominasHandler) ReintentarPOS(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.liquidacion.ReintentarPublicacion(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Consistencia lists movements settled to an unsettled period.
// ?reparar=true returns them to pending.
func (h *NominasHandler) Consistencia(c *gin.Context) {
	resp, err := h.liquidacion.VerificarConsistencia(c.Request.Context(), queryBool(c, "reparar"))
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
