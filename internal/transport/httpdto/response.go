package httpdto

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// Error codes carried in Response.Code.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "TRANSACTION_NOT_FOUND"
	CodeAlreadyProcessed   = "ALREADY_PROCESSED"
	CodeConflict           = "CONFLICT"
	CodeUnsatisfiablePsp   = "UNSATISFIABLE_PSP_REQUEST"
	CodeNodoFault          = "NODO_FAULT"
	CodePaymentInProgress  = "PAYMENT_IN_PROGRESS"
	CodeGatewayError       = "GATEWAY_ERROR"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)
