package handler

import (
	"net/http"

	"gestornomina/internal/dto"
	"gestornomina/internal/service"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct{ svc service.SyncService }

func NewSyncHandler(svc service.SyncService) *SyncHandler { return &SyncHandler{svc: svc} }

// SincronizarConsumos godoc
// @Summary      Sincroniza consumos y abonos de cuenta corriente de un empleado
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        empleado_id path int true "ID del empleado"
// @Param        body body dto.SyncConsumosRequest false "Fecha desde"
// @Success      200  {object} dto.SyncConsumosResponse
// @Failure      404  {object} apierror.APIError
// @Failure      502  {object} apierror.APIError
// @Router       /v1/nomina/sync/consumos/{empleado_id} [post]
func (h *SyncHandler) SincronizarConsumos(c *gin.Context) {
	empleadoID, ok := paramInt(c, "empleado_id")
	if !ok {
		return
	}
	var req dto.SyncConsumosRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.svc.SincronizarConsumos(c.Request.Context(), empleadoID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SincronizarTodos runs the consumption sync for every linked employee.
// Per-employee failures are itemized in the response.
func (h *SyncHandler) SincronizarTodos(c *gin.Context) {
	resp, err := h.svc.SincronizarTodosConsumos(c.Request.Context())
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SincronizarAdelantos godoc
// @Summary      Importa adelantos desde los egresos de caja del POS
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        body body dto.SyncAdelantosRequest false "Ventana de fechas"
// @Success      200  {object} dto.SyncAdelantosResponse
// @Failure      422  {object} apierror.ValidationError
// @Failure      502  {object} apierror.APIError
// @Router       /v1/nomina/sync/adelantos [post]
func (h *SyncHandler) SincronizarAdelantos(c *gin.Context) {
	var req dto.SyncAdelantosRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.svc.SincronizarAdelantos(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
