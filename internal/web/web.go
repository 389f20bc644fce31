// Package web contiene los templates y assets estáticos de la landing,
// embebidos en el binario.
package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/dropDatabas3/liberty-web/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// HomeView es el modelo de la landing. Session nil significa "sin sesión".
type HomeView struct {
	Session   *auth.Session
	SignUpURL string
	CSRFToken string
}

// Renderer ejecuta los templates parseados al arrancar.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: t}, nil
}

// Home renderiza la página completa en w. Si el template falla w puede
// quedar con HTML a medias: el caller decide si bufferear.
func (r *Renderer) Home(w io.Writer, v HomeView) error {
	return r.tmpl.ExecuteTemplate(w, "home", v)
}

// Static sirve /static/* desde los assets embebidos. Se monta con el prefijo
// ya removido.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
