// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// Users
	KeyUserNotFound = "user.not_found"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Sync
	KeySyncStarted        = "sync.started"
	KeySyncAlreadyRunning = "sync.already_running"
	KeySyncRunNotFound    = "sync_run.not_found"

	// Products
	KeyProductNotFound = "product.not_found"

	// Health
	KeyHealthDatabaseDown = "health.database_down"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Rate limiting
	KeyRateLimitExceeded = "rate_limit.exceeded"
)
