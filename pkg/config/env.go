package config

// EnvPrefix is left empty because every field declares its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PACKFINDERZ_APP_ENV"
	EnvPort     = "PACKFINDERZ_APP_PORT"
	EnvLogLevel = "PACKFINDERZ_LOG_LEVEL"

	EnvDBDSN      = "PACKFINDERZ_DB_DSN"
	EnvDBHost     = "PACKFINDERZ_DB_HOST"
	EnvDBPort     = "PACKFINDERZ_DB_PORT"
	EnvDBUser     = "PACKFINDERZ_DB_USER"
	EnvDBPassword = "PACKFINDERZ_DB_PASSWORD"
	EnvDBName     = "PACKFINDERZ_DB_NAME"

	EnvRedisURL = "PACKFINDERZ_REDIS_URL"

	EnvPOSRESTBaseURL     = "PACKFINDERZ_POS_REST_BASE_URL"
	EnvPOSRESTToken       = "PACKFINDERZ_POS_REST_TOKEN"
	EnvPOSRequestTimeout  = "PACKFINDERZ_POS_REQUEST_TIMEOUT"
	EnvPOSSyncInterval    = "PACKFINDERZ_POS_SYNC_INTERVAL"
	EnvSquareAccessToken  = "PACKFINDERZ_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv          = "PACKFINDERZ_SQUARE_ENV"
	EnvCheckoutRequired   = "PACKFINDERZ_CHECKOUT_LOCATION_SELECTION_REQUIRED"
	EnvCheckoutSessionTTL = "PACKFINDERZ_CHECKOUT_SESSION_TTL"
	EnvJWTSecret          = "PACKFINDERZ_JWT_SECRET"
	EnvCORSOrigins        = "PACKFINDERZ_CORS_ALLOWED_ORIGINS"
	EnvGCPProjectID       = "PACKFINDERZ_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
