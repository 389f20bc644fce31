package errors

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
)

// errorResponse structura interna para la serialización JSON.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta JSON basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

var htmlErrorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Status}} {{.Text}}</title></head>
<body>
<main>
<h1>{{.Status}} {{.Text}}</h1>
<p>{{.Message}}</p>
<p><a href="/">Back to home</a></p>
</main>
</body>
</html>
`))

// WriteHTML es la variante para rutas de navegador: misma semántica que
// WriteError pero con una página mínima. Detail y la causa no se exponen.
func WriteHTML(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(appErr.HTTPStatus)
	_ = htmlErrorTmpl.Execute(w, struct {
		Status  int
		Text    string
		Message string
	}{appErr.HTTPStatus, http.StatusText(appErr.HTTPStatus), appErr.Message})
}

// Write elige HTML o JSON según el Accept del request.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	if wantsHTML(r) {
		WriteHTML(w, err)
		return
	}
	WriteError(w, err)
}

func wantsHTML(r *http.Request) bool {
	if r == nil {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}
