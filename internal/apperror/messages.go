package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeBinanceConnectionFailed: "Failed to connect to Binance stream",

	CodeSolanaRPCError:       "Solana RPC call failed",
	CodeSolanaAccountMissing: "Solana account not found",
	CodeInvalidPublicKey:     "Invalid base58 public key",

	CodeMarketResolveFailed:  "Failed to resolve Serum market",
	CodeInvalidMarketAccount: "Account is not a Serum market",
	CodeInvalidMarketOwner:   "Market account is not owned by the configured program",
	CodeInvalidSlab:          "Invalid order book slab",
	CodeOrderbookFetchFailed: "Failed to fetch order book",

	CodeSpreadNotReady:       "Spread not available for pair",
	CodeListenerBindFailed:   "Failed to open subscriber listener",
	CodeCoordinatorNotActive: "Monitor is not running",

	CodeCircuitOpen: "Circuit breaker is open",
}
