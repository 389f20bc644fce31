// Package logger envuelve un *zap.Logger singleton con scoping por contexto.
//
// Init se llama una vez desde main; los middlewares HTTP inyectan un logger
// con request_id/method/path en el contexto y el resto del código lo obtiene
// con From(ctx):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"))
//	log.Info("session stored", logger.UserID(sub))
//
// En "prod" la salida es JSON; en cualquier otro entorno es consola con colores.
// Nunca loguear access tokens ni AUTH_SECRET: no hay helper de campo para ellos.
package logger
