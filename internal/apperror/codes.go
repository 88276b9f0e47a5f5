package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Monitor-specific error codes
const (
	// WebSocket transport
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Exchange feed
	CodeBinanceConnectionFailed Code = "BINANCE_CONNECTION_FAILED"

	// Solana RPC
	CodeSolanaRPCError       Code = "SOLANA_RPC_ERROR"
	CodeSolanaAccountMissing Code = "SOLANA_ACCOUNT_NOT_FOUND"
	CodeInvalidPublicKey     Code = "INVALID_PUBLIC_KEY"

	// Serum order books
	CodeMarketResolveFailed  Code = "MARKET_RESOLVE_FAILED"
	CodeInvalidMarketAccount Code = "INVALID_MARKET_ACCOUNT"
	CodeInvalidMarketOwner   Code = "INVALID_MARKET_OWNER"
	CodeInvalidSlab          Code = "INVALID_SLAB"
	CodeOrderbookFetchFailed Code = "ORDERBOOK_FETCH_FAILED"

	// Spreads and subscriptions
	CodeSpreadNotReady       Code = "SPREAD_NOT_FOUND"
	CodeListenerBindFailed   Code = "LISTENER_BIND_FAILED"
	CodeCoordinatorNotActive Code = "COORDINATOR_NOT_ACTIVE"

	// Circuit breaker
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
