package dto

type ParseMemoResponse struct {
	Valido       bool     `json:"valido"`
	EmpleadoID   int      `json:"empleado_id,omitempty"`
	Empleado     string   `json:"empleado,omitempty"`
	Nombre       string   `json:"nombre,omitempty"`
	Detalle      string   `json:"detalle,omitempty"`
	Formato      string   `json:"formato,omitempty"`
	Advertencias []string `json:"advertencias,omitempty"`
	Motivo       string   `json:"motivo,omitempty"`
	Sugerencia   string   `json:"sugerencia,omitempty"`
}

type CodigoEmpleadoResponse struct {
	EmpleadoID int    `json:"empleado_id"`
	Nombre     string `json:"nombre"`
	Codigo     string `json:"codigo"`
	Ejemplo    string `json:"ejemplo"`
}
