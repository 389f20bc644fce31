package middlewares

import "context"

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxCSRFKey      ctxKey = "csrf_token"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

func setCSRFToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, ctxCSRFKey, tok)
}

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetCSRFToken devuelve el token CSRF vigente para el request, para
// embeberlo en formularios. "" si WithCSRFToken no corrió.
func GetCSRFToken(ctx context.Context) string {
	if v, ok := ctx.Value(ctxCSRFKey).(string); ok {
		return v
	}
	return ""
}
