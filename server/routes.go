package server

import (
	"github.com/mindwell-app/mindwell-server/records"
)

func (s *Server) initRoutes() {
	// CORS preflight. API routes are registered with method-specific
	// patterns, so OPTIONS needs its own pattern or the mux answers 405
	// before CorsMiddleware can run.
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// Pages
	s.RegisterRouteHandler("GET "+RouteHome, ChainMiddleware(s.HomeHandler(), s.PageMiddleware(s.RequirePageSession())...))
	s.RegisterRouteHandler("GET "+s.config.GetSignInPath(), ChainMiddleware(s.SignInPageHandler(), s.PageMiddleware(s.RedirectAuthenticated())...))

	// Auth
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireSession())...))

	// Password reset
	s.RegisterRouteHandler("POST "+RouteAPIForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))

	// Google sign-in
	s.RegisterRouteHandler("GET "+RouteAPIGoogleSignIn, ChainMiddleware(s.GoogleSignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.APIMiddleware()...))

	// Records
	s.RegisterRouteHandler("POST "+RouteAPIMood, ChainMiddleware(s.CreateMoodHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIMood, ChainMiddleware(s.ListRecordsHandler(records.KindMood), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("POST "+RouteAPIJournal, ChainMiddleware(s.CreateJournalHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIJournal, ChainMiddleware(s.ListRecordsHandler(records.KindJournal), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("POST "+RouteAPIChat, ChainMiddleware(s.CreateChatHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIChat, ChainMiddleware(s.ListRecordsHandler(records.KindChat), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("DELETE "+RouteAPIRecordByID, ChainMiddleware(s.DeleteRecordHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPICrisisInfo, ChainMiddleware(s.CrisisResourcesHandler(), s.APIMiddleware(s.RequireSession())...))

	// Realtime
	s.RegisterRouteHandler("GET "+RouteAPIEvents, ChainMiddleware(s.EventsHandler(), s.APIMiddleware(s.RequireSession())...))

	// Health
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
