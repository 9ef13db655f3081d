package handler

import (
	"errors"
	"net/http"

	"gestornomina/internal/apierror"
	"gestornomina/internal/dto"
	"gestornomina/internal/memo"
	"gestornomina/internal/model"

	"github.com/gin-gonic/gin"
)

// MemoHandler exposes the comment parser so operators can check a memo
// before typing it into the POS.
type MemoHandler struct {
	parser    *memo.Parser
	validador *memo.Validador
}

func NewMemoHandler(validador *memo.Validador) *MemoHandler {
	p := validador.Parser
	if p == nil {
		p = memo.NewParser()
	}
	return &MemoHandler{parser: p, validador: validador}
}

// Parse godoc
// @Summary      Interpreta el comentario de un egreso de caja
// @Tags         memo
// @Produce      json
// @Param        texto query string true "Comentario"
// @Success      200  {object} dto.ParseMemoResponse
// @Router       /v1/nomina/memo/parse [get]
func (h *MemoHandler) Parse(c *gin.Context) {
	texto := c.Query("texto")
	r, fallo := h.parser.Parse(texto)
	if fallo != nil {
		c.JSON(http.StatusOK, dto.ParseMemoResponse{Motivo: fallo.Motivo, Sugerencia: fallo.Sugerencia})
		return
	}
	v, fallo, err := h.validador.Validar(c.Request.Context(), r)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if fallo != nil {
		c.JSON(http.StatusOK, dto.ParseMemoResponse{
			EmpleadoID: r.EmpleadoID,
			Formato:    string(r.Formato),
			Motivo:     fallo.Motivo,
			Sugerencia: fallo.Sugerencia,
		})
		return
	}
	c.JSON(http.StatusOK, dto.ParseMemoResponse{
		Valido:       true,
		EmpleadoID:   v.EmpleadoID,
		Empleado:     v.Empleado.Nombre,
		Nombre:       v.Nombre,
		Detalle:      v.Detalle,
		Formato:      string(v.Formato),
		Advertencias: v.Advertencias,
	})
}

// Codigo returns the canonical memo code of an employee for this year.
func (h *MemoHandler) Codigo(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	emp, err := h.validador.Empleados.FindByID(c.Request.Context(), id)
	if errors.Is(err, model.ErrEmpleadoNoEncontrado) {
		c.JSON(http.StatusNotFound, apierror.NewWithHint("Empleado no encontrado",
			"verifique el ID en el listado de empleados"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	codigo := h.parser.CodigoActual(emp.ID)
	c.JSON(http.StatusOK, dto.CodigoEmpleadoResponse{
		EmpleadoID: emp.ID,
		Nombre:     emp.Nombre,
		Codigo:     codigo,
		Ejemplo:    codigo + " almuerzo",
	})
}
