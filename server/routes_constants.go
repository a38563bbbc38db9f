package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Page Routes
	RouteHome   = "/"
	RouteSignIn = "/signin"

	// Auth API Routes
	RouteAPIRegister       = "/api/auth/register"
	RouteAPILogin          = "/api/auth/login"
	RouteAPILogout         = "/api/auth/logout"
	RouteAPIMe             = "/api/auth/me"
	RouteAPIForgotPassword = "/api/auth/forgot-password"
	RouteAPIResetPassword  = "/api/auth/reset-password"

	// Google Sign-In Routes
	RouteAPIGoogleSignIn   = "/api/auth/google"
	RouteAPIGoogleCallback = "/api/auth/google/callback"

	// Record API Routes
	RouteAPIMood       = "/api/records/mood"
	RouteAPIJournal    = "/api/records/journal"
	RouteAPIChat       = "/api/records/chat"
	RouteAPIRecordByID = "/api/records/{kind}/{id}"
	RouteAPICrisisInfo = "/api/records/chat/crisis-resources"

	// Realtime Routes
	RouteAPIEvents = "/api/events"

	// Health
	RouteHealth = "/health"
)

// SessionCookieName is the HTTP-only cookie carrying the signed session token.
const SessionCookieName = "mw_session"
